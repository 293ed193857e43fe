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

// Status tags why a stage produced the rows it did.
type Status int

const (
	// StatusOK means the stage finished with at least one row.
	StatusOK Status = iota
	// StatusEmptySource means the source was reachable but had no rows.
	StatusEmptySource
	// StatusSourceFailed means the source could not be read or parsed.
	StatusSourceFailed
	// StatusAllRejected means the input had rows but cleaning rejected all of them.
	StatusAllRejected
	// StatusPartial means cleaning stopped early; rows reflect the last completed step.
	StatusPartial
	// StatusSkipped means the stage did nothing, e.g. an empty table was not loaded.
	StatusSkipped
	// StatusLoadFailed means the destination was left untouched after an error.
	StatusLoadFailed
)

var statusNames = map[Status]string{
	StatusOK:           "ok",
	StatusEmptySource:  "empty_source",
	StatusSourceFailed: "source_failed",
	StatusAllRejected:  "all_rejected",
	StatusPartial:      "partial",
	StatusSkipped:      "skipped",
	StatusLoadFailed:   "load_failed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// Outcome is the tagged result of one stage.
type Outcome struct {
	Status Status
	Rows   int
	Err    error
}

// OK reports whether the outcome carries no error.
func (o Outcome) OK() bool {
	return o.Err == nil && (o.Status == StatusOK || o.Status == StatusSkipped || o.Status == StatusEmptySource)
}
