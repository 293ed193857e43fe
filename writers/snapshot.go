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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// OutputFormat represents a supported snapshot file format.
type OutputFormat int

const (
	FormatParquet OutputFormat = iota
	FormatCSV
	FormatJSONL
)

// ParseOutputFormat maps a format name to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "parquet":
		return FormatParquet, nil
	case "csv":
		return FormatCSV, nil
	case "jsonl", "json", "ndjson":
		return FormatJSONL, nil
	default:
		return FormatParquet, fmt.Errorf("unsupported snapshot format %q", s)
	}
}

// Ext returns the file extension for the format.
func (f OutputFormat) Ext() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSONL:
		return "jsonl"
	default:
		return "parquet"
	}
}

func (f OutputFormat) String() string { return f.Ext() }

// FileLocation places snapshot files under a directory.
type FileLocation struct {
	Dir string
}

// Path returns the file path for a destination table in the given format.
func (l FileLocation) Path(name string, format OutputFormat) string {
	return filepath.Join(l.Dir, name+"."+format.Ext())
}

// NewSink creates the record writer for a table. Parquet and CSV convert cells to the column kinds.
func (l FileLocation) NewSink(name string, format OutputFormat, columns []string, kinds []ColumnKind) (core.DataSink, error) {
	path := l.Path(name, format)
	if format == FormatParquet {
		return NewParquetWriter(path, columns, kinds)
	}

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if format == FormatCSV {
		w, err := NewCSVWriter(file, columns, kinds)
		if err != nil {
			file.Close()
			return nil, err
		}
		return w, nil
	}
	return NewJSONWriter(file), nil
}

// SnapshotSink writes each cleaned table to a local file. It implements core.TableSink.
type SnapshotSink struct {
	Location FileLocation
	Format   OutputFormat
	logger   *zap.Logger
}

// NewSnapshotSink creates a sink writing to dir in the given format.
func NewSnapshotSink(dir string, format OutputFormat, logger *zap.Logger) *SnapshotSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotSink{
		Location: FileLocation{Dir: dir},
		Format:   format,
		logger:   logger.Named("snapshot"),
	}
}

// Replace implements core.TableSink by overwriting <dir>/<name>.<ext>.
func (s *SnapshotSink) Replace(ctx context.Context, t *core.Table, name string) (core.Outcome, error) {
	if t.Empty() {
		return core.Outcome{Status: core.StatusSkipped}, nil
	}

	sink, err := s.Location.NewSink(name, s.Format, t.Columns, InferKinds(t))
	if err != nil {
		return core.Outcome{Status: core.StatusLoadFailed, Err: err}, err
	}

	var werr error
	for _, r := range t.Rows {
		if werr = sink.Write(ctx, r); werr != nil {
			break
		}
	}
	if werr == nil {
		werr = sink.Flush()
	}
	if err := errors.Join(werr, sink.Close()); err != nil {
		s.logger.Warn("snapshot failed", zap.String("table", name), zap.Error(err))
		return core.Outcome{Status: core.StatusLoadFailed, Err: err}, err
	}

	s.logger.Debug("snapshot written",
		zap.String("table", name),
		zap.String("path", s.Location.Path(name, s.Format)),
		zap.Int("rows", t.Len()))
	return core.Outcome{Status: core.StatusOK, Rows: t.Len()}, nil
}
