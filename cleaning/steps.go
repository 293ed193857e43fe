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
	"fmt"
	"strings"

	"github.com/richardchch/Multinational-Database-Centralization/core"
	"github.com/richardchch/Multinational-Database-Centralization/filter"
	"github.com/richardchch/Multinational-Database-Centralization/transform"
	"github.com/richardchch/Multinational-Database-Centralization/validators"
)

// Step is one stage of a cleaning rule set.
//
// Apply must not modify its input table; it returns a new one. Warnings go to rep.
type Step interface {
	Name() string
	Apply(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error)
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	Label string
	Fn    func(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error)
}

// Name implements Step.
func (s StepFunc) Name() string { return s.Label }

// Apply implements Step.
func (s StepFunc) Apply(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error) {
	return s.Fn(ctx, t, rep)
}

// OnFailure says what a coercion does with a row whose value cannot be converted.
type OnFailure int

const (
	// DropRow removes rows left without a value in the coerced column.
	DropRow OnFailure = iota
	// KeepRow keeps such rows with a nil value.
	KeepRow
)

// Apply runs tr over every row. The strategy decides what happens to rows tr rejects.
func Apply(name string, tr core.Transformer, strategy core.ErrorStrategy) Step {
	return StepFunc{Label: name, Fn: func(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error) {
		out := &core.Table{
			Name:    t.Name,
			Columns: append([]string(nil), t.Columns...),
			Rows:    make([]core.Record, 0, len(t.Rows)),
			Index:   make([]int, 0, len(t.Rows)),
		}
		for i, r := range t.Rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := tr.Transform(ctx, r)
			if err != nil {
				switch strategy {
				case core.SkipErrors:
					continue
				case core.CollectErrors:
					rep.warn(fmt.Sprintf("%s: row %d: %v", name, t.Index[i], err))
					res = r.Clone()
				default:
					return nil, fmt.Errorf("row %d: %w", t.Index[i], err)
				}
			}
			out.Rows = append(out.Rows, res)
			out.Index = append(out.Index, t.Index[i])
		}
		return out, nil
	}}
}

// Where keeps the rows f includes.
func Where(name string, f core.Filter) Step {
	return StepFunc{Label: name, Fn: func(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error) {
		var ferr error
		out := t.Filter(func(r core.Record) bool {
			if ferr != nil {
				return false
			}
			ok, err := f.ShouldInclude(ctx, r)
			if err != nil {
				ferr = err
				return false
			}
			return ok
		})
		if ferr != nil {
			return nil, ferr
		}
		return out, nil
	}}
}

// ReplacePlaceholder turns every cell equal to token into a missing value.
func ReplacePlaceholder(token string) Step {
	return Apply("replace "+token, transform.ReplaceValue(token), core.FailFast)
}

// DropColumns removes the named columns. Columns the table lacks are ignored.
func DropColumns(names ...string) Step {
	return StepFunc{Label: "drop columns " + strings.Join(names, ","), Fn: func(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error) {
		return t.DropColumns(names...), nil
	}}
}

// DropMissing drops every row with a missing value in any of columns, or in any
// table column when none are named.
func DropMissing(columns ...string) Step {
	label := "drop missing"
	if len(columns) > 0 {
		label += " " + strings.Join(columns, ",")
	}
	return StepFunc{Label: label, Fn: func(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error) {
		cols := columns
		if len(cols) == 0 {
			cols = t.Columns
		}
		return Where(label, filter.Complete(cols...)).Apply(ctx, t, rep)
	}}
}

// Coerce converts column with conv; values conv rejects become missing and the
// row is then dropped or kept according to onFailure. Tables without the column pass through.
func Coerce(column string, conv transform.Converter, onFailure OnFailure) Step {
	label := "coerce " + column
	return StepFunc{Label: label, Fn: func(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error) {
		if !t.HasColumn(column) {
			return t, nil
		}
		out, err := Apply(label, transform.Coerce(column, conv), core.FailFast).Apply(ctx, t, rep)
		if err != nil || onFailure == KeepRow {
			return out, err
		}
		return DropMissing(column).Apply(ctx, out, rep)
	}}
}

// Dedupe keeps the first row for every value of column.
func Dedupe(column string) Step {
	return StepFunc{Label: "dedupe " + column, Fn: func(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error) {
		if !t.HasColumn(column) {
			return t, nil
		}
		return Where("dedupe "+column, filter.Unique(column)).Apply(ctx, t, rep)
	}}
}

// Keep applies f only when the table has column.
func Keep(column string, f core.Filter) Step {
	return StepFunc{Label: "keep " + column, Fn: func(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error) {
		if !t.HasColumn(column) {
			return t, nil
		}
		return Where("keep "+column, f).Apply(ctx, t, rep)
	}}
}

// ExpectRows warns when the table does not have exactly n rows. n <= 0 disables the check.
func ExpectRows(n int) Step {
	return StepFunc{Label: fmt.Sprintf("expect %d rows", n), Fn: func(ctx context.Context, t *core.Table, rep *Report) (*core.Table, error) {
		if n <= 0 {
			return t, nil
		}
		v := validators.NewDataQualityValidator(nil, validators.WithExpectedRows(n))
		for _, violation := range v.Evaluate(ctx, t) {
			rep.warn("unexpected row count after cleaning: " + violation.Msg)
		}
		return t, nil
	}}
}
