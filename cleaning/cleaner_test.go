//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of Multinational Database Centralization.
//
// Multinational Database Centralization is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Multinational Database Centralization is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Multinational Database Centralization. If not, see https://www.gnu.org/licenses/.

package cleaning

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/richardchch/Multinational-Database-Centralization/core"
	"github.com/richardchch/Multinational-Database-Centralization/readers"
)

func newTestCleaner() *Cleaner {
	return NewCleaner(WithLogger(zap.NewNop()))
}

func assertInvariants(t *testing.T, tbl *core.Table, required ...string) {
	t.Helper()
	assert.True(t, tbl.IndexContiguous(), "index must run 0..n-1")
	if len(required) == 0 {
		required = tbl.Columns
	}
	for i, r := range tbl.Rows {
		for _, v := range r {
			assert.NotEqual(t, core.NullToken, v, "row %d still holds the placeholder", i)
		}
		for _, c := range required {
			assert.False(t, r.IsMissing(c), "row %d missing %s", i, c)
		}
	}
}

func TestCleanEmptyInputReturnedUnchanged(t *testing.T) {
	for name, spec := range All(DefaultStoreTarget) {
		t.Run(name, func(t *testing.T) {
			raw := core.EmptyTable(name)
			out, rep := newTestCleaner().Clean(context.Background(), spec, raw)
			assert.Same(t, raw, out)
			assert.Equal(t, core.StatusEmptySource, rep.Status)
			assert.NoError(t, rep.Err)
		})
	}
}

func TestCleanUsers(t *testing.T) {
	raw := core.NewTable("users", []string{"first_name", "join_date", "country"}, []core.Record{
		{"first_name": "Ada", "join_date": "2005-05-21", "country": "UK"},
		{"first_name": "NULL", "join_date": "NULL", "country": "NULL"},
		{"first_name": "Bob", "join_date": "GFJQ2AAEQ8", "country": "US"},
		{"first_name": "Cy", "join_date": "2001 October 14", "country": "DE"},
		{"first_name": "Di", "join_date": "1999-01-01", "country": nil},
	})

	out, rep := newTestCleaner().Clean(context.Background(), Users(), raw)
	require.NoError(t, rep.Err)
	assert.Equal(t, core.StatusOK, rep.Status)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "Ada", out.Rows[0]["first_name"])
	assert.Equal(t, "Cy", out.Rows[1]["first_name"])
	assert.IsType(t, time.Time{}, out.Rows[1]["join_date"])
	assertInvariants(t, out)
	assert.Empty(t, rep.Warnings)
}

func TestCleanCards(t *testing.T) {
	raw := core.NewTable("cards", []string{"CardNumber", "expiry_date", "date_payment_confirmed"}, []core.Record{
		{"CardNumber": "4971858637664481", "expiry_date": "09/26", "date_payment_confirmed": "2015-11-25"},
		{"CardNumber": "4971858637664481", "expiry_date": "10/27", "date_payment_confirmed": "2016-01-01"},
		{"CardNumber": "??3554954842403828", "expiry_date": "09/26", "date_payment_confirmed": "2015-11-25"},
		{"CardNumber": "NULL", "expiry_date": "NULL", "date_payment_confirmed": "NULL"},
		{"CardNumber": "213142929492281", "expiry_date": "09/26", "date_payment_confirmed": "NB71VBAHJE"},
		{"CardNumber": "30060773296197", "expiry_date": "09/26", "date_payment_confirmed": "2017 May 14"},
	})

	out, rep := newTestCleaner().Clean(context.Background(), Cards(), raw)
	require.NoError(t, rep.Err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "09/26", out.Rows[0]["expiry_date"], "first occurrence wins")

	seen := map[interface{}]bool{}
	for _, r := range out.Rows {
		n := r["CardNumber"].(string)
		assert.Regexp(t, `^[0-9]+$`, n)
		assert.False(t, seen[n], "duplicate card %s", n)
		seen[n] = true
	}
	assertInvariants(t, out)
}

func TestCleanStores(t *testing.T) {
	raw := core.NewTable("stores", []string{"store_code", "opening_date", "staff_number", "lat"}, []core.Record{
		{"store_code": "WEB-1388012W", "opening_date": "2010-06-12", "staff_number": "325", "lat": nil},
		{"store_code": "HI-9B97EE4E", "opening_date": "1996 October 25", "staff_number": "J78", "lat": "51.5"},
		{"store_code": "NULL", "opening_date": "NULL", "staff_number": "NULL", "lat": "NULL"},
		{"store_code": "ZZ", "opening_date": "2001-01-01", "staff_number": "n/a", "lat": "1"},
	})

	out, rep := newTestCleaner().Clean(context.Background(), Stores(3), raw)
	require.NoError(t, rep.Err)
	assert.Equal(t, core.StatusOK, rep.Status)
	require.Equal(t, 2, out.Len())

	assert.Equal(t, int64(325), out.Rows[0]["staff_number"])
	assert.Equal(t, int64(78), out.Rows[1]["staff_number"])
	assert.IsType(t, time.Time{}, out.Rows[0]["opening_date"])
	assert.Nil(t, out.Rows[1]["opening_date"], "unparseable opening dates are kept as missing")
	assert.Nil(t, out.Rows[0]["lat"], "stores are not dropped for other missing columns")
	assert.True(t, out.IndexContiguous())

	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "found 2 rows, expected 3")
}

func TestCleanStoresExpectedCountMet(t *testing.T) {
	raw := core.NewTable("stores", []string{"staff_number"}, []core.Record{{"staff_number": "1"}})
	_, rep := newTestCleaner().Clean(context.Background(), Stores(1), raw)
	assert.Empty(t, rep.Warnings)
}

func TestCleanProducts(t *testing.T) {
	raw := core.NewTable("products", []string{"product_name", "weight"}, []core.Record{
		{"product_name": "a", "weight": "100g"},
		{"product_name": "b", "weight": "2kg"},
		{"product_name": "c", "weight": "500ml"},
		{"product_name": "d", "weight": "1l"},
		{"product_name": "e", "weight": "5 boxes"},
		{"product_name": "f", "weight": "NULL"},
	})

	out, rep := newTestCleaner().Clean(context.Background(), Products(), raw)
	require.NoError(t, rep.Err)
	require.Equal(t, 4, out.Len())
	want := []float64{0.1, 2.0, 0.5, 1.0}
	for i, w := range want {
		assert.InDelta(t, w, out.Rows[i]["weight"], 1e-12)
	}
	assertInvariants(t, out)
}

func TestCleanProductsDropsUnitlessWeights(t *testing.T) {
	csv := ",product_name,weight\n0,A,100g\n1,B,5\n2,C,5 boxes\n"
	reader, err := readers.NewCSVReader(io.NopCloser(strings.NewReader(csv)), readers.WithCSVInferTypes(false))
	require.NoError(t, err)
	raw, err := core.CollectTable(context.Background(), "products", reader)
	require.NoError(t, err)

	out, rep := newTestCleaner().Clean(context.Background(), Products(), raw)
	require.NoError(t, rep.Err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "A", out.Rows[0]["product_name"])
	assert.InDelta(t, 0.1, out.Rows[0]["weight"], 1e-12)
	assert.Equal(t, core.StatusOK, rep.Status)
	assert.Equal(t, 3, rep.RowsIn)
}

func TestCleanProductsRejectsNumericWeightCells(t *testing.T) {
	raw := core.NewTable("products", []string{"product_name", "weight"}, []core.Record{
		{"product_name": "a", "weight": "2kg"},
		{"product_name": "b", "weight": int64(5)},
	})

	out, rep := newTestCleaner().Clean(context.Background(), Products(), raw)
	require.NoError(t, rep.Err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "a", out.Rows[0]["product_name"])
}

func TestCleanOrdersDropsPII(t *testing.T) {
	raw := core.NewTable("orders", []string{"level_0", "first_name", "last_name", "1", "user_uuid", "order_date"}, []core.Record{
		{"level_0": int64(0), "first_name": nil, "last_name": nil, "1": nil, "user_uuid": "u1", "order_date": "2020-01-02"},
		{"level_0": int64(1), "first_name": nil, "last_name": nil, "1": nil, "user_uuid": "u2", "order_date": "bad"},
	})

	out, rep := newTestCleaner().Clean(context.Background(), Orders(), raw)
	require.NoError(t, rep.Err)
	assert.Equal(t, []string{"level_0", "user_uuid", "order_date"}, out.Columns)
	require.Equal(t, 1, out.Len())
	_, ok := out.Rows[0]["first_name"]
	assert.False(t, ok)
	assertInvariants(t, out)
}

func TestCleanDateEvents(t *testing.T) {
	raw := core.NewTable("dates", []string{"timestamp", "month", "year", "day", "time_period"}, []core.Record{
		{"timestamp": "22:00:06", "month": "9", "year": "2012", "day": "19", "time_period": "Evening"},
		{"timestamp": "NULL", "month": "NULL", "year": "NULL", "day": "NULL", "time_period": "NULL"},
		{"timestamp": "1YMRDJNU2T", "month": "1YMRDJNU2T", "year": "1YMRDJNU2T", "day": "1YMRDJNU2T", "time_period": "x"},
	})

	out, rep := newTestCleaner().Clean(context.Background(), DateEvents(), raw)
	require.NoError(t, rep.Err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, int64(9), out.Rows[0]["month"])
	assert.Equal(t, int64(2012), out.Rows[0]["year"])
	assert.Equal(t, int64(19), out.Rows[0]["day"])
	assertInvariants(t, out)
}

func TestCleanAllRejected(t *testing.T) {
	raw := core.NewTable("products", []string{"weight"}, []core.Record{{"weight": "NULL"}, {"weight": "lots"}})
	out, rep := newTestCleaner().Clean(context.Background(), Products(), raw)
	assert.True(t, out.Empty())
	assert.Equal(t, core.StatusAllRejected, rep.Status)
	assert.Equal(t, 2, rep.RowsIn)
	assert.NoError(t, rep.Err)
}

func TestCleanIsIdempotent(t *testing.T) {
	raws := map[string]*core.Table{
		EntityUsers: core.NewTable("u", []string{"n", "join_date"}, []core.Record{
			{"n": "a", "join_date": "2005-05-21"}, {"n": "NULL", "join_date": "2005-05-21"}, {"n": "b", "join_date": "2011 March 02"},
		}),
		EntityCards: core.NewTable("c", []string{"CardNumber", "date_payment_confirmed"}, []core.Record{
			{"CardNumber": "1", "date_payment_confirmed": "2015-11-25"}, {"CardNumber": "1", "date_payment_confirmed": "2015-11-25"},
		}),
		EntityStores: core.NewTable("s", []string{"opening_date", "staff_number"}, []core.Record{
			{"opening_date": "2001-01-01", "staff_number": "3e4"}, {"opening_date": "oops", "staff_number": "12"},
		}),
		EntityProducts: core.NewTable("p", []string{"weight"}, []core.Record{{"weight": "77g"}, {"weight": "1.5kg"}}),
		EntityOrders: core.NewTable("o", []string{"first_name", "order_date"}, []core.Record{
			{"first_name": "x", "order_date": "2020-01-02"},
		}),
		EntityDateEvents: core.NewTable("d", []string{"day", "month", "year"}, []core.Record{
			{"day": "1", "month": "2", "year": "2000"}, {"day": "x", "month": "2", "year": "2000"},
		}),
	}

	c := newTestCleaner()
	for entity, spec := range All(0) {
		t.Run(entity, func(t *testing.T) {
			once, rep := c.Clean(context.Background(), spec, raws[entity])
			require.NoError(t, rep.Err)
			require.False(t, once.Empty())

			twice, rep2 := c.Clean(context.Background(), spec, once)
			require.NoError(t, rep2.Err)
			assert.Equal(t, once.Columns, twice.Columns)
			assert.Equal(t, once.Rows, twice.Rows)
			assert.Equal(t, once.Index, twice.Index)
		})
	}
}

type panicStep struct{}

func (panicStep) Name() string { return "explode" }
func (panicStep) Apply(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error) {
	panic("kaboom")
}

func TestCleanReturnsPartialTableOnPanic(t *testing.T) {
	spec := Spec{Entity: "x", Steps: []Step{
		ReplacePlaceholder(core.NullToken),
		DropMissing(),
		panicStep{},
		DropColumns("a"),
	}}
	raw := core.NewTable("x", []string{"a"}, []core.Record{{"a": "NULL"}, {"a": "keep"}, {"a": "also"}})

	out, rep := newTestCleaner().Clean(context.Background(), spec, raw)
	require.Error(t, rep.Err)
	assert.Equal(t, core.StatusPartial, rep.Status)

	var ce *CleaningError
	require.True(t, errors.As(rep.Err, &ce))
	assert.Equal(t, "explode", ce.Step)

	require.Equal(t, 2, out.Len(), "rows dropped before the failure stay dropped")
	assert.Equal(t, []string{"a"}, out.Columns, "steps after the failure do not run")
	assert.True(t, out.IndexContiguous())
	assert.Equal(t, "NULL", raw.Rows[0]["a"], "raw input is untouched")
}

func TestApplyStrategies(t *testing.T) {
	failOdd := core.TransformFunc(func(ctx context.Context, r core.Record) (core.Record, error) {
		if r["n"].(int)%2 == 1 {
			return nil, errors.New("odd")
		}
		out := r.Clone()
		out["n"] = r["n"].(int) * 10
		return out, nil
	})
	raw := core.NewTable("n", []string{"n"}, []core.Record{{"n": 1}, {"n": 2}, {"n": 3}})

	t.Run("skip", func(t *testing.T) {
		rep := &Report{}
		out, err := Apply("x", failOdd, core.SkipErrors).Apply(context.Background(), raw, rep)
		require.NoError(t, err)
		require.Equal(t, 1, out.Len())
		assert.Equal(t, []int{1}, out.Index)
	})

	t.Run("collect", func(t *testing.T) {
		rep := &Report{}
		out, err := Apply("x", failOdd, core.CollectErrors).Apply(context.Background(), raw, rep)
		require.NoError(t, err)
		assert.Equal(t, 3, out.Len())
		assert.Equal(t, 1, out.Rows[0]["n"])
		assert.Len(t, rep.Warnings, 2)
	})

	t.Run("fail fast", func(t *testing.T) {
		_, err := Apply("x", failOdd, core.FailFast).Apply(context.Background(), raw, &Report{})
		assert.Error(t, err)
	})
}
