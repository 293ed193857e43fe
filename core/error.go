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

// This file contains the row error strategies used by cleaning steps.

// ErrorStrategy defines what a cleaning step does with a row it cannot process.
type ErrorStrategy int

const (
	// FailFast aborts the step on the first row error.
	FailFast ErrorStrategy = iota
	// SkipErrors drops the failed row and continues.
	SkipErrors
	// CollectErrors keeps the row unchanged and records the error.
	CollectErrors
)

// String returns the strategy name used in logs.
func (s ErrorStrategy) String() string {
	switch s {
	case FailFast:
		return "fail_fast"
	case SkipErrors:
		return "skip"
	case CollectErrors:
		return "collect"
	default:
		return "unknown"
	}
}
