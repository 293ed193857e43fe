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
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// CSVWriterError wraps CSV-specific write errors with context.
type CSVWriterError struct {
	Op  string
	Err error
}

func (e *CSVWriterError) Error() string {
	return fmt.Sprintf("csv writer %s: %v", e.Op, e.Err)
}

func (e *CSVWriterError) Unwrap() error {
	return e.Err
}

// CSVWriterStats holds CSV write statistics.
type CSVWriterStats struct {
	RecordsWritten  int64
	RecordsRejected int64
	FlushCount      int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// CSVWriterOptions configures CSV output.
type CSVWriterOptions struct {
	BatchSize int // Rows buffered before the underlying writer is flushed
}

// WriterOptionCSV is a functional option.
type WriterOptionCSV func(*CSVWriterOptions)

// WithCSVBatchSize sets how many rows are buffered between flushes.
func WithCSVBatchSize(size int) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.BatchSize = size
	}
}

// CSVWriter implements core.DataSink for a fixed list of columns. Each cell is
// converted to its column kind first, the same way the Parquet and warehouse
// writers store it, so the file holds what the warehouse would.
type CSVWriter struct {
	mu      sync.Mutex
	writer  *csv.Writer
	closer  io.Closer
	columns []string
	kinds   []ColumnKind
	opts    CSVWriterOptions
	pending int
	stats   CSVWriterStats
	failed  error
	closed  bool
}

// NewCSVWriter creates a CSV writer over w. The header row is written
// immediately, so an empty table still produces a file with its columns.
func NewCSVWriter(w io.WriteCloser, columns []string, kinds []ColumnKind, opts ...WriterOptionCSV) (*CSVWriter, error) {
	if len(columns) != len(kinds) {
		return nil, &CSVWriterError{Op: "schema", Err: fmt.Errorf("%d columns but %d kinds", len(columns), len(kinds))}
	}
	options := CSVWriterOptions{BatchSize: 500}
	for _, opt := range opts {
		opt(&options)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return nil, &CSVWriterError{Op: "write_header", Err: err}
	}

	return &CSVWriter{
		writer:  cw,
		closer:  w,
		columns: append([]string(nil), columns...),
		kinds:   append([]ColumnKind(nil), kinds...),
		opts:    options,
		stats:   CSVWriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Write implements the core.DataSink interface. A record with a cell that does
// not fit its column kind is rejected and the writer stays usable.
func (c *CSVWriter) Write(ctx context.Context, record core.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &CSVWriterError{Op: "write", Err: err}
	}
	if c.closed {
		return &CSVWriterError{Op: "write", Err: errors.New("writer is closed")}
	}
	if c.failed != nil {
		return &CSVWriterError{Op: "write", Err: fmt.Errorf("writer is in error state: %w", c.failed)}
	}

	row := make([]string, len(c.columns))
	for i, name := range c.columns {
		cell, err := formatValue(record[name], c.kinds[i])
		if err != nil {
			c.stats.RecordsRejected++
			return &CSVWriterError{Op: "convert_value", Err: fmt.Errorf("field %s: %w", name, err)}
		}
		row[i] = cell
	}
	for _, name := range c.columns {
		if record[name] == nil {
			c.stats.NullValueCounts[name]++
		}
	}

	if err := c.writer.Write(row); err != nil {
		c.failed = err
		return &CSVWriterError{Op: "write_row", Err: err}
	}
	c.stats.RecordsWritten++
	c.pending++

	if c.opts.BatchSize > 0 && c.pending >= c.opts.BatchSize {
		return c.flushUnsafe()
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.flushUnsafe()
}

// Close flushes and closes the underlying writer. Closing twice is a no-op.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	ferr := c.flushUnsafe()
	var cerr error
	if c.closer != nil {
		cerr = c.closer.Close()
	}
	return errors.Join(ferr, cerr)
}

// flushUnsafe pushes buffered rows to the underlying writer (must hold mutex).
func (c *CSVWriter) flushUnsafe() error {
	start := time.Now()
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.failed = err
		return &CSVWriterError{Op: "flush", Err: err}
	}
	c.pending = 0
	c.stats.FlushCount++
	c.stats.LastFlushTime = time.Now()
	c.stats.FlushDuration += time.Since(start)
	return nil
}

// Stats returns write statistics.
func (c *CSVWriter) Stats() CSVWriterStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	statsCopy := c.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(c.stats.NullValueCounts))
	for k, v := range c.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}
