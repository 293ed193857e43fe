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
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

var productColumns = []string{"product_name", "product_price", "weight", "removed", "date_added"}
var productKinds = []ColumnKind{KindText, KindText, KindDouble, KindBoolean, KindTimestamp}

func productRecords() []core.Record {
	added := time.Date(2018, 10, 22, 0, 0, 0, 0, time.UTC)
	return []core.Record{
		{"product_name": "FurReal Dazzlin' Dimples", "product_price": "£39.99", "weight": 1.6, "removed": false, "date_added": added},
		{"product_name": "Tiffany Tea Set", "product_price": "£8.99", "weight": int64(2), "removed": true, "date_added": nil},
		{"product_name": "Hair Bow", "product_price": nil, "weight": nil, "removed": false, "date_added": added},
	}
}

func readBack(t *testing.T, filename string) (*arrow.Schema, int64) {
	t.Helper()
	rdr, err := file.OpenParquetFile(filename, false)
	require.NoError(t, err)
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	schema, err := fr.Schema()
	require.NoError(t, err)
	return schema, rdr.NumRows()
}

func TestParquetWriterRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "dim_products.parquet")

	writer, err := NewParquetWriter(filename, productColumns, productKinds,
		WithBatchSize(2),
		WithCompression(compress.Codecs.Snappy))
	require.NoError(t, err)

	ctx := context.Background()
	for _, r := range productRecords() {
		require.NoError(t, writer.Write(ctx, r))
	}
	require.NoError(t, writer.Close())

	stats := writer.Stats()
	assert.Equal(t, int64(3), stats.RecordsWritten)
	// One full batch of two, then the remainder on close.
	assert.Equal(t, int64(2), stats.BatchesWritten)
	assert.Equal(t, int64(1), stats.NullValueCounts["product_price"])
	assert.Equal(t, int64(1), stats.NullValueCounts["date_added"])

	schema, rows := readBack(t, filename)
	assert.Equal(t, int64(3), rows)
	require.Len(t, schema.Fields(), len(productColumns))
	for i, name := range productColumns {
		assert.Equal(t, name, schema.Field(i).Name)
	}
	assert.Equal(t, arrow.FLOAT64, schema.Field(2).Type.ID())
	assert.Equal(t, arrow.BOOL, schema.Field(3).Type.ID())
}

func TestParquetWriterEmptyFileHasSchema(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "nested", "empty.parquet")
	writer, err := NewParquetWriter(filename, []string{"a"}, []ColumnKind{KindBigInt})
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	// Closing twice is fine.
	require.NoError(t, writer.Close())

	schema, rows := readBack(t, filename)
	assert.Zero(t, rows)
	assert.Equal(t, "a", schema.Field(0).Name)
}

func TestParquetWriterRejectsMismatchedValue(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "bad.parquet")
	writer, err := NewParquetWriter(filename, []string{"n"}, []ColumnKind{KindBigInt}, WithBatchSize(1))
	require.NoError(t, err)
	defer writer.Close()

	err = writer.Write(context.Background(), core.Record{"n": "not a number"})
	var perr *ParquetWriterError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "append_value", perr.Op)
}

func TestParquetWriterSchemaMismatch(t *testing.T) {
	_, err := NewParquetWriter(filepath.Join(t.TempDir(), "x.parquet"), []string{"a", "b"}, []ColumnKind{KindText})
	require.Error(t, err)
}

func TestParquetWriterClosed(t *testing.T) {
	writer, err := NewParquetWriter(filepath.Join(t.TempDir(), "c.parquet"), []string{"a"}, []ColumnKind{KindText})
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	assert.Error(t, writer.Write(context.Background(), core.Record{"a": "x"}))
}
