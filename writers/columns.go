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

// Package writers loads cleaned tables into the warehouse and writes local snapshots.
package writers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v12/arrow"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// ColumnKind is the storage type inferred for a column from its values.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindBigInt
	KindDouble
	KindBoolean
	KindTimestamp
)

// SQLType returns the PostgreSQL type for the kind.
func (k ColumnKind) SQLType() string {
	switch k {
	case KindBigInt:
		return "BIGINT"
	case KindDouble:
		return "DOUBLE PRECISION"
	case KindBoolean:
		return "BOOLEAN"
	case KindTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// ArrowType returns the Arrow type for the kind.
func (k ColumnKind) ArrowType() arrow.DataType {
	switch k {
	case KindBigInt:
		return arrow.PrimitiveTypes.Int64
	case KindDouble:
		return arrow.PrimitiveTypes.Float64
	case KindBoolean:
		return arrow.FixedWidthTypes.Boolean
	case KindTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		return arrow.BinaryTypes.String
	}
}

func kindOf(v interface{}) (ColumnKind, bool) {
	switch v.(type) {
	case nil:
		return KindText, false
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return KindBigInt, true
	case float32, float64:
		return KindDouble, true
	case bool:
		return KindBoolean, true
	case time.Time:
		return KindTimestamp, true
	default:
		return KindText, true
	}
}

// InferKind picks one kind for a column. Integers mixed with floats widen to
// double; any other mix, and all-missing columns, become text.
func InferKind(values []interface{}) ColumnKind {
	kind, seen := KindText, false
	for _, v := range values {
		k, ok := kindOf(v)
		if !ok {
			continue
		}
		if !seen {
			kind, seen = k, true
			continue
		}
		if k == kind {
			continue
		}
		if (k == KindBigInt && kind == KindDouble) || (k == KindDouble && kind == KindBigInt) {
			kind = KindDouble
			continue
		}
		return KindText
	}
	return kind
}

// InferKinds returns the kind of every table column, in column order.
func InferKinds(t *core.Table) []ColumnKind {
	kinds := make([]ColumnKind, len(t.Columns))
	for i, c := range t.Columns {
		kinds[i] = InferKind(t.Column(c))
	}
	return kinds
}

// convertValue turns a cell into the Go value stored for kind.
func convertValue(v interface{}, kind ColumnKind) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case KindBigInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int8:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case uint8:
			return int64(n), nil
		case uint16:
			return int64(n), nil
		case uint32:
			return int64(n), nil
		}
	case KindDouble:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		default:
			if i, err := convertValue(v, KindBigInt); err == nil {
				return float64(i.(int64)), nil
			}
		}
	case KindBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindTimestamp:
		if ts, ok := v.(time.Time); ok {
			return ts, nil
		}
	default:
		switch s := v.(type) {
		case string:
			return s, nil
		case time.Time:
			return s.Format(time.RFC3339), nil
		default:
			return fmt.Sprint(v), nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) does not fit column type %s", v, v, kind.SQLType())
}

// timestampText is how timestamp cells are written to text formats.
const timestampText = "2006-01-02 15:04:05"

// formatValue converts a cell to kind and renders it as text. Missing cells are empty.
func formatValue(v interface{}, kind ColumnKind) (string, error) {
	c, err := convertValue(v, kind)
	if err != nil || c == nil {
		return "", err
	}
	switch t := c.(type) {
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case time.Time:
		return t.Format(timestampText), nil
	default:
		return fmt.Sprint(t), nil
	}
}
