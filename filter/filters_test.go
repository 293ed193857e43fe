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

package filter

import (
	"context"
	"testing"

	"github.com/richardchch/Multinational-Database-Centralization/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func include(t *testing.T, f core.Filter, r core.Record) bool {
	t.Helper()
	ok, err := f.ShouldInclude(context.Background(), r)
	require.NoError(t, err)
	return ok
}

func TestNotNullAndComplete(t *testing.T) {
	assert.True(t, include(t, NotNull("a"), core.Record{"a": ""}))
	assert.False(t, include(t, NotNull("a"), core.Record{"a": nil}))
	assert.False(t, include(t, NotNull("a"), core.Record{}))

	c := Complete("a", "b")
	assert.True(t, include(t, c, core.Record{"a": 1, "b": 2}))
	assert.False(t, include(t, c, core.Record{"a": 1, "b": nil}))
}

func TestUniqueFirstOccurrenceWins(t *testing.T) {
	u := Unique("CardNumber")
	assert.True(t, include(t, u, core.Record{"CardNumber": "4971858637664481", "n": 1}))
	assert.False(t, include(t, u, core.Record{"CardNumber": "4971858637664481", "n": 2}))
	assert.True(t, include(t, u, core.Record{"CardNumber": "30060773296197"}))
	assert.True(t, include(t, u, core.Record{"CardNumber": int64(30060773296197)}), "different types are different keys")
}

func TestDigitsOnly(t *testing.T) {
	f := DigitsOnly("CardNumber")
	tests := []struct {
		value interface{}
		want  bool
	}{
		{"4971858637664481", true},
		{"??4971858637664481", false},
		{"NB71VBAHJE", false},
		{"", false},
		{"1234 5678", false},
		{int64(42), true},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, include(t, f, core.Record{"CardNumber": tt.value}), "%v", tt.value)
	}
}

func TestCompleteWithNoColumnsKeepsEverything(t *testing.T) {
	assert.True(t, include(t, Complete(), core.Record{"a": nil}))
	assert.True(t, include(t, And(), core.Record{}))
}
