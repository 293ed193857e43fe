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

// validators.go - Data quality checks run against cleaned tables
package validators

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// DataQualityValidator checks a cleaned table against the invariants of its entity.
//
// Violations are reported, never enforced: a table that fails a check is still
// loaded, and the caller decides how loudly to complain.
type DataQualityValidator struct {
	ExpectedRows    int                       // Exact row count expected (0 = unchecked)
	RequiredFields  []string                  // Fields that must be non-missing in every row
	RequireAll      bool                      // Treat every table column as required
	ForbiddenValue  string                    // String value that must not appear in any cell ("" = unchecked)
	UniqueFields    []string                  // Fields whose values must not repeat
	FieldValidators map[string]FieldValidator // Per-field validation rules
	MaxViolations   int                       // Stop collecting after this many (0 = 50)
}

// FieldValidator defines validation rules for individual fields
type FieldValidator struct {
	DataType   FieldDataType                   // Expected data type
	Pattern    *regexp.Regexp                  // Regex pattern for string fields
	CustomFunc func(interface{}) (bool, error) // Custom validation function
}

// FieldDataType represents expected data types for validation
type FieldDataType string

const (
	FieldTypeString FieldDataType = "string"
	FieldTypeInt    FieldDataType = "int"
	FieldTypeFloat  FieldDataType = "float"
	FieldTypeNumber FieldDataType = "number"
	FieldTypeBool   FieldDataType = "bool"
	FieldTypeDate   FieldDataType = "date"
	FieldTypeAny    FieldDataType = "any"
)

// Violation is one failed check.
type Violation struct {
	Check string // row_count, required, forbidden_value, unique, field
	Row   int    // row position, -1 for table-level checks
	Field string
	Msg   string
}

func (v Violation) String() string {
	if v.Row < 0 {
		return fmt.Sprintf("%s: %s", v.Check, v.Msg)
	}
	return fmt.Sprintf("%s: row %d field %s: %s", v.Check, v.Row, v.Field, v.Msg)
}

const defaultMaxViolations = 50

// Evaluate runs every configured check and returns the violations found.
func (dqv *DataQualityValidator) Evaluate(ctx context.Context, table *core.Table) []Violation {
	limit := dqv.MaxViolations
	if limit <= 0 {
		limit = defaultMaxViolations
	}
	var out []Violation
	add := func(v Violation) bool {
		out = append(out, v)
		return len(out) < limit
	}

	if dqv.ExpectedRows > 0 && table.Len() != dqv.ExpectedRows {
		add(Violation{Check: "row_count", Row: -1,
			Msg: fmt.Sprintf("found %d rows, expected %d", table.Len(), dqv.ExpectedRows)})
	}

	required := dqv.RequiredFields
	if dqv.RequireAll {
		required = table.Columns
	}

	seen := make(map[string]map[string]int, len(dqv.UniqueFields))
	for _, f := range dqv.UniqueFields {
		seen[f] = make(map[string]int)
	}

	for i, record := range table.Rows {
		if ctx.Err() != nil {
			return out
		}
		for _, v := range dqv.checkRecord(i, record, required, seen) {
			if !add(v) {
				return out
			}
		}
	}
	return out
}

func (dqv *DataQualityValidator) checkRecord(i int, record core.Record, required []string, seen map[string]map[string]int) []Violation {
	var out []Violation

	for _, field := range required {
		if record.IsMissing(field) {
			out = append(out, Violation{Check: "required", Row: i, Field: field, Msg: "missing value"})
		}
	}

	if dqv.ForbiddenValue != "" {
		for field, value := range record {
			if s, ok := value.(string); ok && s == dqv.ForbiddenValue {
				out = append(out, Violation{Check: "forbidden_value", Row: i, Field: field,
					Msg: fmt.Sprintf("contains %q", s)})
			}
		}
	}

	for _, field := range dqv.UniqueFields {
		if record.IsMissing(field) {
			continue
		}
		key := fmt.Sprintf("%v", record[field])
		if first, dup := seen[field][key]; dup {
			out = append(out, Violation{Check: "unique", Row: i, Field: field,
				Msg: fmt.Sprintf("value %q repeats row %d", key, first)})
			continue
		}
		seen[field][key] = i
	}

	for field, validator := range dqv.FieldValidators {
		value, exists := record[field]
		if !exists || value == nil {
			continue
		}
		if err := validateValue(value, validator); err != nil {
			out = append(out, Violation{Check: "field", Row: i, Field: field, Msg: err.Error()})
		}
	}
	return out
}

// validateValue checks a single non-nil value against its validator
func validateValue(value interface{}, validator FieldValidator) error {
	if !validateDataType(value, validator.DataType) {
		return fmt.Errorf("has type %T, expected %s", value, validator.DataType)
	}

	if validator.Pattern != nil {
		str := fmt.Sprintf("%v", value)
		if !validator.Pattern.MatchString(str) {
			return fmt.Errorf("value '%s' does not match pattern", str)
		}
	}

	if validator.CustomFunc != nil {
		valid, err := validator.CustomFunc(value)
		if err != nil {
			return fmt.Errorf("custom validation failed: %w", err)
		}
		if !valid {
			return fmt.Errorf("failed custom validation")
		}
	}
	return nil
}

// validateDataType checks if a value matches the expected data type
func validateDataType(value interface{}, expectedType FieldDataType) bool {
	switch expectedType {
	case "", FieldTypeAny:
		return true
	case FieldTypeString:
		_, ok := value.(string)
		return ok
	case FieldTypeInt:
		switch value.(type) {
		case int, int32, int64:
			return true
		}
		return false
	case FieldTypeFloat:
		_, ok := value.(float64)
		return ok
	case FieldTypeNumber:
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case FieldTypeBool:
		_, ok := value.(bool)
		return ok
	case FieldTypeDate:
		_, ok := value.(time.Time)
		return ok
	default:
		return true
	}
}

// DataQualityOption is a functional option for configuring DataQualityValidator
type DataQualityOption func(*DataQualityValidator)

// WithExpectedRows sets the exact row count the table should have.
func WithExpectedRows(n int) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.ExpectedRows = n
	}
}

// WithAllColumnsRequired requires every column of the evaluated table.
func WithAllColumnsRequired() DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.RequireAll = true
	}
}

// WithForbiddenValue flags any cell equal to value.
func WithForbiddenValue(value string) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.ForbiddenValue = value
	}
}

// WithUniqueFields sets fields whose values must not repeat.
func WithUniqueFields(fields ...string) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.UniqueFields = append(dqv.UniqueFields, fields...)
	}
}

// WithFieldValidator adds a field-specific validator
func WithFieldValidator(fieldName string, validator FieldValidator) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		if dqv.FieldValidators == nil {
			dqv.FieldValidators = make(map[string]FieldValidator)
		}
		dqv.FieldValidators[fieldName] = validator
	}
}

// NewDataQualityValidator creates a validator requiring the given fields, configured with options.
func NewDataQualityValidator(requiredFields []string, options ...DataQualityOption) *DataQualityValidator {
	dqv := &DataQualityValidator{
		RequiredFields:  requiredFields,
		FieldValidators: make(map[string]FieldValidator),
	}
	for _, option := range options {
		option(dqv)
	}
	return dqv
}
