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
	"regexp"

	"github.com/richardchch/Multinational-Database-Centralization/core"
	"github.com/richardchch/Multinational-Database-Centralization/filter"
	"github.com/richardchch/Multinational-Database-Centralization/transform"
	"github.com/richardchch/Multinational-Database-Centralization/validators"
)

// Entity names.
const (
	EntityUsers      = "users"
	EntityCards      = "card_details"
	EntityStores     = "store_details"
	EntityProducts   = "products"
	EntityOrders     = "orders"
	EntityDateEvents = "date_events"
)

// Column names the rule sets refer to.
const (
	ColJoinDate    = "join_date"
	ColCardNumber  = "CardNumber"
	ColPaymentDate = "date_payment_confirmed"
	ColOpeningDate = "opening_date"
	ColStaffNumber = "staff_number"
	ColWeight      = "weight"
	ColOrderDate   = "order_date"
	ColDay         = "day"
	ColMonth       = "month"
	ColYear        = "year"
)

// DefaultStoreTarget is the number of stores the store API is known to list.
const DefaultStoreTarget = 441

const storeDateLayout = "2006-01-02"

// OrderPIIColumns are removed from orders before anything else.
var OrderPIIColumns = []string{"first_name", "last_name", "1"}

var digits = regexp.MustCompile(`^[0-9]+$`)

// Users: rows must be complete and join_date must be a date.
func Users() Spec {
	return Spec{
		Entity: EntityUsers,
		Steps: []Step{
			ReplacePlaceholder(core.NullToken),
			DropMissing(),
			Coerce(ColJoinDate, transform.ParseDate(), DropRow),
		},
		Quality: completeTable(
			validators.WithFieldValidator(ColJoinDate, validators.FieldValidator{DataType: validators.FieldTypeDate}),
		),
	}
}

// Cards: one row per card number, card numbers digits only, valid payment date.
func Cards() Spec {
	return Spec{
		Entity: EntityCards,
		Steps: []Step{
			ReplacePlaceholder(core.NullToken),
			DropMissing(),
			Dedupe(ColCardNumber),
			Keep(ColCardNumber, filter.DigitsOnly(ColCardNumber)),
			Coerce(ColPaymentDate, transform.ParseDate(), DropRow),
		},
		Quality: completeTable(
			validators.WithUniqueFields(ColCardNumber),
			validators.WithFieldValidator(ColCardNumber, validators.FieldValidator{Pattern: digits}),
			validators.WithFieldValidator(ColPaymentDate, validators.FieldValidator{DataType: validators.FieldTypeDate}),
		),
	}
}

// Stores keeps rows whose opening date does not parse; the date is left missing.
// Staff numbers are reduced to their digits and rows without any are dropped.
// expected is the store count the API should yield; a different count is a warning.
func Stores(expected int) Spec {
	return Spec{
		Entity: EntityStores,
		Steps: []Step{
			ReplacePlaceholder(core.NullToken),
			Coerce(ColOpeningDate, transform.StrictDate(storeDateLayout), KeepRow),
			Coerce(ColStaffNumber, transform.DigitsToNumber, DropRow),
			ExpectRows(expected),
		},
		Quality: validators.NewDataQualityValidator([]string{ColStaffNumber},
			validators.WithForbiddenValue(core.NullToken),
			validators.WithFieldValidator(ColStaffNumber, validators.FieldValidator{DataType: validators.FieldTypeNumber}),
		),
	}
}

// Products: weight normalised to kilograms.
func Products() Spec {
	return Spec{
		Entity: EntityProducts,
		Steps: []Step{
			ReplacePlaceholder(core.NullToken),
			DropMissing(),
			Coerce(ColWeight, transform.WeightToKg, DropRow),
		},
		Quality: completeTable(
			validators.WithFieldValidator(ColWeight, validators.FieldValidator{DataType: validators.FieldTypeFloat}),
		),
	}
}

// Orders: personal columns removed, order_date must be a date.
func Orders() Spec {
	return Spec{
		Entity: EntityOrders,
		Steps: []Step{
			DropColumns(OrderPIIColumns...),
			ReplacePlaceholder(core.NullToken),
			DropMissing(),
			Coerce(ColOrderDate, transform.ParseDate(), DropRow),
		},
		Quality: completeTable(
			validators.WithFieldValidator(ColOrderDate, validators.FieldValidator{DataType: validators.FieldTypeDate}),
		),
	}
}

// DateEvents: day, month and year must all be numbers.
func DateEvents() Spec {
	number := validators.FieldValidator{DataType: validators.FieldTypeNumber}
	return Spec{
		Entity: EntityDateEvents,
		Steps: []Step{
			ReplacePlaceholder(core.NullToken),
			DropMissing(),
			Coerce(ColDay, transform.ToNumeric, KeepRow),
			Coerce(ColMonth, transform.ToNumeric, KeepRow),
			Coerce(ColYear, transform.ToNumeric, KeepRow),
			DropMissing(),
		},
		Quality: completeTable(
			validators.WithFieldValidator(ColDay, number),
			validators.WithFieldValidator(ColMonth, number),
			validators.WithFieldValidator(ColYear, number),
		),
	}
}

// All returns the rule set of every entity keyed by entity name.
func All(expectedStores int) map[string]Spec {
	return map[string]Spec{
		EntityUsers:      Users(),
		EntityCards:      Cards(),
		EntityStores:     Stores(expectedStores),
		EntityProducts:   Products(),
		EntityOrders:     Orders(),
		EntityDateEvents: DateEvents(),
	}
}

func completeTable(opts ...validators.DataQualityOption) *validators.DataQualityValidator {
	opts = append([]validators.DataQualityOption{
		validators.WithAllColumnsRequired(),
		validators.WithForbiddenValue(core.NullToken),
	}, opts...)
	return validators.NewDataQualityValidator(nil, opts...)
}
