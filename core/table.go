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

package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Table is an in-memory, ordered collection of rows with named columns.
//
// Index holds the row labels: Index[i] is the label of Rows[i]. Sources produce
// a contiguous 0..n-1 index; filtering keeps the surviving labels so gaps show up
// until ResetIndex is called.
type Table struct {
	Name    string
	Columns []string
	Rows    []Record
	Index   []int
}

// NewTable creates a table with a contiguous index over rows.
func NewTable(name string, columns []string, rows []Record) *Table {
	t := &Table{
		Name:    name,
		Columns: append([]string(nil), columns...),
		Rows:    rows,
	}
	t.ResetIndex()
	return t
}

// EmptyTable returns a table with no columns and no rows.
func EmptyTable(name string) *Table {
	return &Table{Name: name, Columns: []string{}, Rows: []Record{}, Index: []int{}}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return t.Len() == 0 }

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the values of one column in row order.
func (t *Table) Column(name string) []interface{} {
	out := make([]interface{}, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[name]
	}
	return out
}

// Clone returns a copy of the table whose rows can be modified independently.
func (t *Table) Clone() *Table {
	out := &Table{
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Record, len(t.Rows)),
		Index:   append([]int(nil), t.Index...),
	}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// DropColumns returns a copy without the named columns. Unknown names are ignored.
func (t *Table) DropColumns(names ...string) *Table {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}

	out := t.Clone()
	out.Columns = out.Columns[:0]
	for _, c := range t.Columns {
		if _, ok := drop[c]; !ok {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, r := range out.Rows {
		for n := range drop {
			delete(r, n)
		}
	}
	return out
}

// Filter returns a copy holding only the rows for which keep returns true.
// Surviving rows keep their index labels.
func (t *Table) Filter(keep func(Record) bool) *Table {
	out := &Table{
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Record, 0, len(t.Rows)),
		Index:   make([]int, 0, len(t.Rows)),
	}
	for i, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r.Clone())
			out.Index = append(out.Index, t.labelAt(i))
		}
	}
	return out
}

// ResetIndex relabels the rows 0..n-1.
func (t *Table) ResetIndex() {
	t.Index = make([]int, len(t.Rows))
	for i := range t.Index {
		t.Index[i] = i
	}
}

// IndexContiguous reports whether the index runs 0..n-1 with no gaps.
func (t *Table) IndexContiguous() bool {
	if len(t.Index) != len(t.Rows) {
		return false
	}
	for i, v := range t.Index {
		if v != i {
			return false
		}
	}
	return true
}

func (t *Table) labelAt(i int) int {
	if i < len(t.Index) {
		return t.Index[i]
	}
	return i
}

// CollectTable drains a DataSource into a table. The source is closed afterwards.
//
// Column order comes from the source when it implements Columned, otherwise the
// union of the record keys sorted by name.
func CollectTable(ctx context.Context, name string, src DataSource) (*Table, error) {
	defer src.Close()

	var rows []Record
	seen := make(map[string]struct{})
	var keys []string

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", name, err)
		}
		for k := range rec {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
		rows = append(rows, rec)
	}

	var columns []string
	if c, ok := src.(Columned); ok && len(c.Columns()) > 0 {
		columns = c.Columns()
	} else {
		sort.Strings(keys)
		columns = keys
	}
	if rows == nil {
		rows = []Record{}
	}
	return NewTable(name, columns, rows), nil
}
