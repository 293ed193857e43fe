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

import (
	"context"
)

// This file contains the interfaces for data sources, sinks, transformation and filtering.

// DataSource defines the interface for data extraction.
// Implementations stream records from a source (relational table, PDF, S3 object, HTTP feed).
type DataSource interface {
	// Read returns the next record or io.EOF when no more records are available.
	Read(ctx context.Context) (Record, error)
	// Close releases any resources held by the data source.
	Close() error
}

// Columned is implemented by sources that know their column order up front.
type Columned interface {
	Columns() []string
}

// DataSink defines the interface for record-at-a-time loading.
// Snapshot writers (CSV, JSON lines, Parquet) implement it.
type DataSink interface {
	// Write outputs a single record to the sink.
	Write(ctx context.Context, record Record) error
	// Flush ensures all buffered data is written to the sink.
	Flush() error
	// Close releases any resources held by the data sink.
	Close() error
}

// TableSink replaces a named destination with the full contents of a table.
type TableSink interface {
	Replace(ctx context.Context, table *Table, name string) (Outcome, error)
}

// Transformer defines the interface for data transformation operations.
// Transformers modify or enrich records as they pass through a cleaning step.
type Transformer interface {
	// Transform applies the transformation to a record and returns the result.
	Transform(ctx context.Context, record Record) (Record, error)
}

// Filter defines the interface for record filtering.
// Filters determine whether a record should be kept.
type Filter interface {
	// ShouldInclude returns true if the record should be included in the output.
	ShouldInclude(ctx context.Context, record Record) (bool, error)
}
