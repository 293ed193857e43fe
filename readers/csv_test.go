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

package readers

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

const productsCSV = `,product_name,product_price,weight,EAN,removed
0,FurReal Dazzlin' Dimples My Dalmatian Dog,£39.99,1.6kg,7425710935115,Still_avaliable
1,Tiffany Style Flower Lamp,£34.99,,3.5,Removed
2,"Short, row",£1.00
`

func TestCSVReaderProducts(t *testing.T) {
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader(productsCSV)))
	require.NoError(t, err)

	assert.Equal(t, []string{"Unnamed: 0", "product_name", "product_price", "weight", "EAN", "removed"}, reader.Columns())

	table, err := core.CollectTable(context.Background(), "products", reader)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	first := table.Rows[0]
	assert.Equal(t, int64(0), first["Unnamed: 0"])
	assert.Equal(t, "£39.99", first["product_price"])
	assert.Equal(t, "1.6kg", first["weight"])
	assert.Equal(t, int64(7425710935115), first["EAN"])

	second := table.Rows[1]
	assert.Nil(t, second["weight"])
	assert.Equal(t, 3.5, second["EAN"])

	third := table.Rows[2]
	assert.Equal(t, "Short, row", third["product_name"])
	assert.Nil(t, third["weight"])
	assert.Nil(t, third["removed"])

	assert.Equal(t, int64(3), reader.Stats().RecordsRead)
	assert.Equal(t, int64(1), reader.Stats().NullValueCounts["weight"])
}

func TestCSVReaderWithoutInference(t *testing.T) {
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader("a,b\n1,true\n")), WithCSVInferTypes(false))
	require.NoError(t, err)

	rec, err := reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.Record{"a": "1", "b": "true"}, rec)
}

func TestCSVReaderEmptyInput(t *testing.T) {
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader("")))
	require.NoError(t, err)

	_, err = reader.Read(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.Empty(t, reader.Columns())
}

func TestCSVReaderSemicolonAndBOM(t *testing.T) {
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader("\ufeffx;y\n1;NaN\n")), WithCSVComma(';'))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, reader.Columns())

	rec, err := reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec["x"])
	assert.Equal(t, "NaN", rec["y"])
}

func TestCSVReaderCancelled(t *testing.T) {
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader("a\n1\n")))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reader.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
