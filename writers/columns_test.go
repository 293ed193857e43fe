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

package writers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferKind(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		values []interface{}
		want   ColumnKind
	}{
		{"all missing", []interface{}{nil, nil}, KindText},
		{"empty", nil, KindText},
		{"ints", []interface{}{int64(1), nil, 3}, KindBigInt},
		{"floats", []interface{}{1.5, 2.5}, KindDouble},
		{"ints widen to double", []interface{}{int64(1), 2.5}, KindDouble},
		{"bools", []interface{}{true, false}, KindBoolean},
		{"timestamps", []interface{}{now, nil}, KindTimestamp},
		{"strings", []interface{}{"a", "b"}, KindText},
		{"mixed", []interface{}{int64(1), "a"}, KindText},
		{"time with text", []interface{}{now, "2020-01-01"}, KindText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferKind(tt.values))
		})
	}
}

func TestInferKinds(t *testing.T) {
	kinds := InferKinds(storesTable())
	assert.Equal(t, []ColumnKind{KindText, KindBigInt, KindTimestamp, KindDouble}, kinds)
}

func TestConvertValue(t *testing.T) {
	v, err := convertValue(int32(7), KindDouble)
	require.NoError(t, err)
	assert.Equal(t, float64(7), v)

	v, err = convertValue(12, KindBigInt)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	v, err = convertValue(int64(5), KindText)
	require.NoError(t, err)
	assert.Equal(t, "5", v)

	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	v, err = convertValue(ts, KindText)
	require.NoError(t, err)
	assert.Equal(t, "2020-01-02T03:04:05Z", v)

	v, err = convertValue(nil, KindBoolean)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = convertValue("yes", KindBoolean)
	assert.Error(t, err)
}

func TestColumnKindTypes(t *testing.T) {
	assert.Equal(t, "DOUBLE PRECISION", KindDouble.SQLType())
	assert.Equal(t, "TEXT", KindText.SQLType())
	assert.Equal(t, "int64", KindBigInt.ArrowType().Name())
	assert.Equal(t, "utf8", KindText.ArrowType().Name())
}
