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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// JSONWriter implements core.DataSink for JSON lines output.
type JSONWriter struct {
	writer  *bufio.Writer
	closer  io.Closer
	written int64
}

// NewJSONWriter creates a new JSON writer for line-delimited JSON output
func NewJSONWriter(w io.WriteCloser) *JSONWriter {
	return &JSONWriter{
		writer: bufio.NewWriter(w),
		closer: w,
	}
}

// Write implements the core.DataSink interface
func (j *JSONWriter) Write(ctx context.Context, record core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record to JSON: %w", err)
	}
	if _, err := j.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write JSON data: %w", err)
	}
	j.written++
	return nil
}

// Flush implements the core.DataSink interface
func (j *JSONWriter) Flush() error {
	return j.writer.Flush()
}

// Close implements the core.DataSink interface
func (j *JSONWriter) Close() error {
	if err := j.Flush(); err != nil {
		return err
	}
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

// Written returns how many records were written.
func (j *JSONWriter) Written() int64 {
	return j.written
}
