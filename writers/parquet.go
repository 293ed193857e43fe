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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "open_file", "append_value", "write_batch")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64                // Maximum rows per row group
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// ParquetWriter implements core.DataSink for Parquet files with a fixed schema.
type ParquetWriter struct {
	writer    *pqarrow.FileWriter
	schema    *arrow.Schema
	columns   []string
	kinds     []ColumnKind
	buffer    []core.Record
	batchSize int64
	allocator memory.Allocator
	stats     WriterStats
	closed    bool
}

// ParquetSchema builds the Arrow schema for columns of the given kinds.
func ParquetSchema(columns []string, kinds []ColumnKind) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c, Type: kinds[i].ArrowType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// NewParquetWriter creates filename and a writer for columns of the given kinds.
func NewParquetWriter(filename string, columns []string, kinds []ColumnKind, options ...WriterOption) (*ParquetWriter, error) {
	if len(columns) != len(kinds) {
		return nil, &ParquetWriterError{Op: "schema", Err: fmt.Errorf("%d columns but %d kinds", len(columns), len(kinds))}
	}

	opts := ParquetWriterOptions{
		BatchSize:    1000,
		Compression:  compress.Codecs.Snappy,
		RowGroupSize: 10000,
	}
	for _, option := range options {
		option(&opts)
	}

	if dir := filepath.Dir(filename); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &ParquetWriterError{Op: "create_directory", Err: err}
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, &ParquetWriterError{Op: "open_file", Err: err}
	}

	schema := ParquetSchema(columns, kinds)
	props := parquet.NewWriterProperties(
		parquet.WithCompression(opts.Compression),
		parquet.WithMaxRowGroupLength(opts.RowGroupSize),
	)
	writer, err := pqarrow.NewFileWriter(schema, file, props, pqarrow.DefaultWriterProps())
	if err != nil {
		file.Close()
		return nil, &ParquetWriterError{Op: "create_writer", Err: err}
	}

	return &ParquetWriter{
		writer:    writer,
		schema:    schema,
		columns:   append([]string(nil), columns...),
		kinds:     append([]ColumnKind(nil), kinds...),
		batchSize: opts.BatchSize,
		allocator: memory.NewGoAllocator(),
		stats:     WriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Write implements the core.DataSink interface.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if err := ctx.Err(); err != nil {
		return &ParquetWriterError{Op: "write", Err: err}
	}
	p.buffer = append(p.buffer, record)
	p.stats.RecordsWritten++
	if int64(len(p.buffer)) >= p.batchSize {
		return p.flushBatch()
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	return p.flushBatch()
}

// Close implements the core.DataSink interface. Closing the file writer also closes the file.
func (p *ParquetWriter) Close() error {
	if p.closed {
		return nil
	}
	flushErr := p.flushBatch()
	p.closed = true
	if err := p.writer.Close(); err != nil {
		return &ParquetWriterError{Op: "close_writer", Err: err}
	}
	return flushErr
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}

func (p *ParquetWriter) flushBatch() error {
	if len(p.buffer) == 0 {
		return nil
	}
	start := time.Now()

	rb := array.NewRecordBuilder(p.allocator, p.schema)
	defer rb.Release()

	for _, record := range p.buffer {
		for i, name := range p.columns {
			v, err := convertValue(record[name], p.kinds[i])
			if err != nil {
				return &ParquetWriterError{Op: "append_value", Err: fmt.Errorf("field %s: %w", name, err)}
			}
			if v == nil {
				rb.Field(i).AppendNull()
				p.stats.NullValueCounts[name]++
				continue
			}
			appendValue(rb.Field(i), v)
		}
	}

	rec := rb.NewRecord()
	defer rec.Release()
	if err := p.writer.Write(rec); err != nil {
		return &ParquetWriterError{Op: "write_batch", Err: err}
	}

	p.buffer = p.buffer[:0]
	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	p.stats.LastFlushTime = time.Now()
	return nil
}

// appendValue appends a value already converted by convertValue.
func appendValue(b array.Builder, v interface{}) {
	switch bb := b.(type) {
	case *array.Int64Builder:
		bb.Append(v.(int64))
	case *array.Float64Builder:
		bb.Append(v.(float64))
	case *array.BooleanBuilder:
		bb.Append(v.(bool))
	case *array.TimestampBuilder:
		bb.Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
	case *array.StringBuilder:
		bb.Append(v.(string))
	default:
		b.AppendNull()
	}
}
