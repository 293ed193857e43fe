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

package transform

import (
	"context"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// Package transform provides the record transformers used by the cleaning rules.
//
// Every transformer returns a new record and leaves its input untouched, so a
// cleaning step that fails half way never corrupts the table it started from.

// ReplaceValue creates a transformer that turns every string cell equal to token into nil.
func ReplaceValue(token string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for k, v := range record {
			if s, ok := v.(string); ok && s == token {
				result[k] = nil
				continue
			}
			result[k] = v
		}
		return result, nil
	})
}

// Coerce creates a transformer that converts one field with conv.
//
// A value conv rejects becomes nil rather than failing the record, leaving the
// decision to drop the row to the caller. Missing values are left alone.
func Coerce(field string, conv Converter) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := record.Clone()
		value, exists := record[field]
		if !exists || value == nil {
			return result, nil
		}
		converted, err := conv(value)
		if err != nil {
			result[field] = nil
			return result, nil
		}
		result[field] = converted
		return result, nil
	})
}
