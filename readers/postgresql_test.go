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

package readers

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

func newMockSource(t *testing.T, options ...PostgresReaderOption) (*PostgresSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresSourceFromDB(sqlx.NewDb(db, "postgres"), options...), mock
}

func TestPostgresSourceRequiresDSN(t *testing.T) {
	_, err := NewPostgresSource()
	var pgErr *PostgresReaderError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "validate", pgErr.Op)
}

func TestPostgresListTables(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT table_name FROM information_schema.tables")).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("legacy_store_details").
			AddRow("legacy_users").
			AddRow("orders_table"))

	names, err := src.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy_store_details", "legacy_users", "orders_table"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListTablesError(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectQuery("information_schema").WillReturnError(errors.New("connection refused"))

	_, err := src.ListTables(context.Background())
	var pgErr *PostgresReaderError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "list_tables", pgErr.Op)
}

func TestPostgresTableReader(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."legacy_users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"index", "first_name", "join_date"}).
			AddRow(int64(0), []byte("Sigfried"), "1992-10-31").
			AddRow(int64(1), "NULL", nil))

	reader, err := src.TableReader(context.Background(), "legacy_users")
	require.NoError(t, err)
	assert.Equal(t, []string{"index", "first_name", "join_date"}, reader.Columns())

	table, err := core.CollectTable(context.Background(), "legacy_users", reader)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"index", "first_name", "join_date"}, table.Columns)
	assert.Equal(t, "Sigfried", table.Rows[0]["first_name"])
	assert.Equal(t, int64(0), table.Rows[0]["index"])
	assert.Equal(t, "NULL", table.Rows[1]["first_name"])
	assert.Nil(t, table.Rows[1]["join_date"])
	assert.Equal(t, int64(1), reader.Stats().NullValueCounts["join_date"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTableReaderQuotesName(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."odd""name"`)).
		WillReturnRows(sqlmock.NewRows([]string{"a"}))

	reader, err := src.TableReader(context.Background(), `odd"name`)
	require.NoError(t, err)
	_, err = reader.Read(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, reader.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSchemaOption(t *testing.T) {
	src, mock := newMockSource(t, WithPostgresSchema("legacy"))
	mock.ExpectQuery("information_schema").WithArgs("legacy").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("orders_table"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "legacy"."orders_table"`)).
		WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(1))

	names, err := src.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"orders_table"}, names)

	reader, err := src.TableReader(context.Background(), "orders_table")
	require.NoError(t, err)
	table, err := core.CollectTable(context.Background(), "orders_table", reader)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTableReaderTimesOut(t *testing.T) {
	src, mock := newMockSource(t, WithPostgresQueryTimeout(20*time.Millisecond))
	mock.ExpectQuery("SELECT").
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(1))

	_, err := src.TableReader(context.Background(), "legacy_users")
	var pgErr *PostgresReaderError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "query", pgErr.Op)
}

func TestPostgresTableReaderEmptyName(t *testing.T) {
	src, _ := newMockSource(t)
	_, err := src.TableReader(context.Background(), "")
	assert.Error(t, err)
}

func TestPostgresReadCancelled(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(1))

	reader, err := src.TableReader(context.Background(), "t")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reader.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvertPostgresValue(t *testing.T) {
	assert.Equal(t, "abc", convertPostgresValue([]byte("abc")))
	assert.Equal(t, int64(3), convertPostgresValue(int32(3)))
	assert.Equal(t, float64(1.5), convertPostgresValue(float32(1.5)))
	assert.Nil(t, convertPostgresValue(nil))
}
