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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Converter turns one cell value into its cleaned form.
// Converters accept their own output unchanged so that cleaning twice is a no-op.
type Converter func(value interface{}) (interface{}, error)

// ErrUnknownUnit is returned by WeightToKg when no unit rule matches.
var ErrUnknownUnit = errors.New("unrecognized weight unit")

// DateLayouts are the layouts ParseDate tries when none are given.
// The source systems mix ISO dates with spelled-out month formats, and single
// digit days and months appear unpadded. A 1 or 2 element also accepts two digits.
var DateLayouts = []string{
	"2006-1-2",
	"2006-1-2 15:04:05",
	"2006-1-2T15:04:05",
	time.RFC3339,
	"2006/1/2",
	"2006 January 2",
	"January 2006 2",
	"2006 Jan 2",
	"2 January 2006",
	"January 2, 2006",
	"1/2/2006",
}

// ParseDate returns a converter that parses strings with the first matching layout.
func ParseDate(layouts ...string) Converter {
	if len(layouts) == 0 {
		layouts = DateLayouts
	}
	return func(value interface{}) (interface{}, error) {
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			s := strings.TrimSpace(v)
			for _, layout := range layouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t, nil
				}
			}
			return nil, fmt.Errorf("unparseable date %q", v)
		default:
			return nil, fmt.Errorf("cannot parse %T as date", value)
		}
	}
}

// StrictDate returns a converter accepting exactly one layout.
func StrictDate(layout string) Converter {
	return ParseDate(layout)
}

// ToNumeric converts a value to int64 when it is integral and float64 otherwise.
func ToNumeric(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("not a finite number: %v", v)
		}
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("not numeric: %q", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to number", value)
	}
}

// StripNonDigits removes every non-digit character from the value's text form.
func StripNonDigits(value interface{}) (interface{}, error) {
	s := fmt.Sprint(value)
	if f, ok := value.(float64); ok && f == math.Trunc(f) {
		s = strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s), nil
}

// DigitsToNumber strips non-digits and converts what is left to a number.
func DigitsToNumber(value interface{}) (interface{}, error) {
	switch value.(type) {
	case int64, int:
		return ToNumeric(value)
	}
	digits, _ := StripNonDigits(value)
	return ToNumeric(digits)
}

type unitRule struct {
	token   string
	divisor float64
}

// weightRules are checked in this order by substring, so "g" is tried before "kg".
var weightRules = []unitRule{
	{"g", 1000},
	{"kg", 1},
	{"ml", 1000},
	{"l", 1},
}

// WeightToKg converts a free-form weight such as "100g" or "1.5kg" to kilograms.
//
// A float64 is its own earlier output and is returned unchanged. Anything else
// needs a unit: a bare 5 or "5" is rejected. A rule whose token matches but
// whose remainder does not parse falls through to the next rule.
func WeightToKg(value interface{}) (interface{}, error) {
	if v, ok := value.(float64); ok {
		return v, nil
	}

	w := strings.ToLower(strings.TrimSpace(fmt.Sprint(value)))
	for _, rule := range weightRules {
		if !strings.Contains(w, rule.token) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(w, rule.token, "")), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			continue
		}
		return n / rule.divisor, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, w)
}
