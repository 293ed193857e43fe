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
	"fmt"
	"regexp"
	"sync"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// Package filter provides the row filters used by the cleaning rules.
//
// All functions return core.Filter implementations.

// NotNull creates a filter that excludes records where the specified field is absent or nil.
func NotNull(field string) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		return !record.IsMissing(field), nil
	})
}

// Complete creates a filter that excludes records with a missing value in any of columns.
func Complete(columns ...string) core.Filter {
	filters := make([]core.Filter, len(columns))
	for i, c := range columns {
		filters[i] = NotNull(c)
	}
	return And(filters...)
}

// Unique creates a filter that keeps the first record for each value of field.
//
// The filter is stateful: build a new one for every table.
func Unique(field string) core.Filter {
	var mu sync.Mutex
	seen := make(map[string]struct{})
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		key := fmt.Sprintf("%T:%v", record[field], record[field])
		mu.Lock()
		defer mu.Unlock()
		if _, dup := seen[key]; dup {
			return false, nil
		}
		seen[key] = struct{}{}
		return true, nil
	})
}

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// DigitsOnly creates a filter that keeps records whose field consists of ASCII digits only.
// Integer values qualify; empty strings do not.
func DigitsOnly(field string) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		switch v := record[field].(type) {
		case string:
			return digitsOnly.MatchString(v), nil
		case int64:
			return v >= 0, nil
		case int:
			return v >= 0, nil
		default:
			return false, nil
		}
	})
}

// And creates a filter that requires all provided filters to pass
func And(filters ...core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		for _, filter := range filters {
			include, err := filter.ShouldInclude(ctx, record)
			if err != nil {
				return false, err
			}
			if !include {
				return false, nil
			}
		}
		return true, nil
	})
}
