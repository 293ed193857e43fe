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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// JSONReaderError wraps structured error information for the JSON readers.
type JSONReaderError struct {
	Op  string
	Err error
}

func (e *JSONReaderError) Error() string {
	return fmt.Sprintf("json reader %s: %v", e.Op, e.Err)
}

func (e *JSONReaderError) Unwrap() error {
	return e.Err
}

// JSONReader implements DataSource for JSON lines content.
type JSONReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

// NewJSONReader creates a new JSON reader for line-delimited JSON
func NewJSONReader(r io.ReadCloser) *JSONReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &JSONReader{
		scanner: scanner,
		closer:  r,
	}
}

// Read implements the DataSource interface
func (j *JSONReader) Read(ctx context.Context) (core.Record, error) {
	for {
		if !j.scanner.Scan() {
			if err := j.scanner.Err(); err != nil {
				return nil, &JSONReaderError{Op: "scan", Err: err}
			}
			return nil, io.EOF
		}
		line := j.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record core.Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, &JSONReaderError{Op: "unmarshal", Err: err}
		}
		return normalizeRecord(record), nil
	}
}

// Close implements the DataSource interface
func (j *JSONReader) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

// JSONDocumentReader implements DataSource over one JSON document.
//
// Three shapes are understood:
//   - an array of objects, one row per object;
//   - an object of objects keyed by row label ({"col": {"0": v, "1": w}}), one row per label;
//   - a single object of scalars, one row.
//
// Column order follows the document.
type JSONDocumentReader struct {
	columns []string
	rows    []core.Record
	pos     int
}

// NewJSONDocumentReader decodes the whole document from r.
func NewJSONDocumentReader(r io.Reader) (*JSONDocumentReader, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	doc, err := decodeOrdered(dec)
	if err != nil {
		return nil, &JSONReaderError{Op: "decode", Err: err}
	}

	reader := &JSONDocumentReader{}
	switch v := doc.(type) {
	case []interface{}:
		err = reader.fromArray(v)
	case *orderedObject:
		if len(v.keys) == 0 {
			break
		}
		if v.allObjects() {
			reader.fromColumns(v)
		} else {
			err = reader.fromArray([]interface{}{v})
		}
	case nil:
	default:
		err = fmt.Errorf("unsupported document of type %T", doc)
	}
	if err != nil {
		return nil, &JSONReaderError{Op: "shape", Err: err}
	}
	return reader, nil
}

func (j *JSONDocumentReader) fromArray(items []interface{}) error {
	seen := make(map[string]struct{})
	for i, item := range items {
		obj, ok := item.(*orderedObject)
		if !ok {
			return fmt.Errorf("element %d is %T, not an object", i, item)
		}
		rec := make(core.Record, len(obj.keys))
		for _, k := range obj.keys {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				j.columns = append(j.columns, k)
			}
			rec[k] = scalar(obj.values[k])
		}
		j.rows = append(j.rows, rec)
	}
	return nil
}

func (j *JSONDocumentReader) fromColumns(obj *orderedObject) {
	var labels []string
	byLabel := make(map[string]core.Record)
	for _, col := range obj.keys {
		j.columns = append(j.columns, col)
		cells := obj.values[col].(*orderedObject)
		for _, label := range cells.keys {
			rec, ok := byLabel[label]
			if !ok {
				rec = make(core.Record, len(obj.keys))
				byLabel[label] = rec
				labels = append(labels, label)
			}
			rec[col] = scalar(cells.values[label])
		}
	}
	sortLabels(labels)
	for _, label := range labels {
		rec := byLabel[label]
		for _, col := range j.columns {
			if _, ok := rec[col]; !ok {
				rec[col] = nil
			}
		}
		j.rows = append(j.rows, rec)
	}
}

// sortLabels orders numeric row labels numerically and leaves other labels in document order.
func sortLabels(labels []string) {
	nums := make(map[string]int, len(labels))
	for _, l := range labels {
		n, err := strconv.Atoi(l)
		if err != nil {
			return
		}
		nums[l] = n
	}
	sort.SliceStable(labels, func(a, b int) bool {
		return nums[labels[a]] < nums[labels[b]]
	})
}

// Columns returns the column names in document order.
func (j *JSONDocumentReader) Columns() []string {
	return j.columns
}

// Read implements the DataSource interface.
func (j *JSONDocumentReader) Read(ctx context.Context) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &JSONReaderError{Op: "read", Err: err}
	}
	if j.pos >= len(j.rows) {
		return nil, io.EOF
	}
	r := j.rows[j.pos]
	j.pos++
	return r, nil
}

// Close implements the DataSource interface.
func (j *JSONDocumentReader) Close() error {
	return nil
}

type orderedObject struct {
	keys   []string
	values map[string]interface{}
}

func (o *orderedObject) allObjects() bool {
	if len(o.keys) == 0 {
		return false
	}
	for _, k := range o.keys {
		if _, ok := o.values[k].(*orderedObject); !ok {
			return false
		}
	}
	return true
}

// decodeOrdered decodes the next JSON value keeping object key order.
func decodeOrdered(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (interface{}, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &orderedObject{values: make(map[string]interface{})}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", keyTok)
				}
				next, err := dec.Token()
				if err != nil {
					return nil, err
				}
				val, err := decodeToken(dec, next)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.values[key]; !dup {
					obj.keys = append(obj.keys, key)
				}
				obj.values[key] = val
			}
			_, err := dec.Token()
			return obj, err
		case '[':
			arr := []interface{}{}
			for dec.More() {
				next, err := dec.Token()
				if err != nil {
					return nil, err
				}
				val, err := decodeToken(dec, next)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			_, err := dec.Token()
			return arr, err
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return t, nil
	}
}

// scalar flattens decoded values into cell values.
func scalar(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case *orderedObject:
		m := make(map[string]interface{}, len(t.keys))
		for _, k := range t.keys {
			m[k] = scalar(t.values[k])
		}
		return m
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = scalar(e)
		}
		return out
	default:
		return v
	}
}

// normalizeRecord converts float64 values that hold whole numbers to int64.
func normalizeRecord(r core.Record) core.Record {
	for k, v := range r {
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			r[k] = int64(f)
		}
	}
	return r
}
