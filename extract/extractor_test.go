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

package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/richardchch/Multinational-Database-Centralization/readers"
)

type fakeS3 struct {
	body string
	err  error
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(f.body)),
		ContentLength: aws.Int64(int64(len(f.body))),
	}, nil
}

func TestReadTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."legacy_users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "join_date"}).
			AddRow("Sigfried", "1992-10-31").
			AddRow("Guy", "NULL"))

	e := New(WithLogger(zap.NewNop()), WithSourceDatabase(readers.NewPostgresSourceFromDB(sqlx.NewDb(db, "postgres"))))
	table, err := e.ReadTable(context.Background(), "legacy_users")
	require.NoError(t, err)
	assert.Equal(t, "legacy_users", table.Name)
	assert.Equal(t, []string{"first_name", "join_date"}, table.Columns)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []int{0, 1}, table.Index)
}

func TestReadTableFailureReturnsEmptyTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT").WillReturnError(errors.New(`relation "orders_table" does not exist`))

	e := New(WithLogger(zap.NewNop()), WithSourceDatabase(readers.NewPostgresSourceFromDB(sqlx.NewDb(db, "postgres"))))
	table, err := e.ReadTable(context.Background(), "orders_table")
	require.NotNil(t, table)
	assert.True(t, table.Empty())

	var xerr *ExtractError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "read_table", xerr.Op)
	assert.Equal(t, "orders_table", xerr.Source)
}

func TestReadTableWithoutSource(t *testing.T) {
	table, err := New(WithLogger(zap.NewNop())).ReadTable(context.Background(), "legacy_users")
	assert.True(t, table.Empty())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(WithLogger(zap.NewNop())).ListTables(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestListTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("information_schema").WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("legacy_users").AddRow("orders_table"))

	e := New(WithLogger(zap.NewNop()), WithSourceDatabase(readers.NewPostgresSourceFromDB(sqlx.NewDb(db, "postgres"))))
	names, err := e.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy_users", "orders_table"}, names)
}

func TestExtractFromS3(t *testing.T) {
	e := New(WithLogger(zap.NewNop()), WithS3Client(&fakeS3{body: ",product_name,weight\n0,Lamp,1.6kg\n"}))

	table, err := e.ExtractFromS3(context.Background(), "s3://data-handling-public/products.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"Unnamed: 0", "product_name", "weight"}, table.Columns)
	assert.Equal(t, 1, table.Len())
}

func TestExtractFromS3KeepsCellsAsText(t *testing.T) {
	e := New(WithLogger(zap.NewNop()), WithS3Client(&fakeS3{body: ",product_name,weight\n0,Box,5\n1,Crate,\n"}))

	table, err := e.ExtractFromS3(context.Background(), "s3://data-handling-public/products.csv")
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "0", table.Rows[0]["Unnamed: 0"])
	assert.Equal(t, "5", table.Rows[0]["weight"])
	assert.Nil(t, table.Rows[1]["weight"])
}

func TestExtractFromS3Failures(t *testing.T) {
	e := New(WithLogger(zap.NewNop()), WithS3Client(&fakeS3{err: errors.New("AccessDenied")}))

	table, err := e.ExtractFromS3(context.Background(), "s3://bucket/products.csv")
	assert.True(t, table.Empty())
	assert.Error(t, err)

	table, err = e.ExtractFromS3(context.Background(), "not-an-s3-uri")
	assert.True(t, table.Empty())
	var s3Err *readers.S3ReaderError
	assert.ErrorAs(t, err, &s3Err)
}

func TestExtractJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"timestamp": "22:00:06", "day": "19", "month": "9", "year": "2012"}]`)
	}))
	defer server.Close()

	table, err := New(WithLogger(zap.NewNop())).ExtractJSON(context.Background(), server.URL+"/date_details.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"timestamp", "day", "month", "year"}, table.Columns)
	assert.Equal(t, 1, table.Len())
}

func TestExtractJSONUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	table, err := New(WithLogger(zap.NewNop())).ExtractJSON(context.Background(), server.URL)
	assert.True(t, table.Empty())
	var httpErr *readers.HTTPReaderError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestRetrievePDFDataFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not a pdf")
	}))
	defer server.Close()

	table, err := New(WithLogger(zap.NewNop())).RetrievePDFData(context.Background(), server.URL+"/card_details.pdf")
	assert.True(t, table.Empty())
	var pdfErr *readers.PDFReaderError
	assert.ErrorAs(t, err, &pdfErr)
}

func storeServer(t *testing.T, count int, failing map[int]bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/number_stores" {
			fmt.Fprintf(w, `{"statusCode": 200, "number_stores": %d}`, count)
			return
		}
		var n int
		if _, err := fmt.Sscanf(r.URL.Path, "/store_details/%d", &n); err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if failing[n] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"index": %d, "store_code": "ST-%d", "staff_numbers": "%d"}`, n-1, n, 10+n)
	}))
}

func TestRetrieveStores(t *testing.T) {
	server := storeServer(t, 5, map[int]bool{3: true})
	defer server.Close()

	fetcher := readers.NewHTTPFetcher(readers.WithHTTPAPIKey("x-api-key", "test-key"))
	e := New(WithLogger(zap.NewNop()), WithStoreAPI(server.URL, fetcher))

	n, err := e.NumberOfStores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	table, err := e.RetrieveStores(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())
	assert.Equal(t, []interface{}{"ST-1", "ST-2", "ST-4", "ST-5"}, table.Column("store_code"))
	assert.Equal(t, []int{0, 1, 2, 3}, table.Index)
}

func TestRetrieveStoresZeroCount(t *testing.T) {
	server := storeServer(t, 0, nil)
	defer server.Close()

	fetcher := readers.NewHTTPFetcher(readers.WithHTTPAPIKey("x-api-key", "test-key"))
	table, err := New(WithLogger(zap.NewNop()), WithStoreAPI(server.URL, fetcher)).RetrieveStores(context.Background())
	require.NoError(t, err)
	assert.True(t, table.Empty())
}

func TestRetrieveStoresBadKey(t *testing.T) {
	server := storeServer(t, 3, nil)
	defer server.Close()

	fetcher := readers.NewHTTPFetcher(readers.WithHTTPAPIKey("x-api-key", "wrong"))
	table, err := New(WithLogger(zap.NewNop()), WithStoreAPI(server.URL, fetcher)).RetrieveStores(context.Background())
	assert.True(t, table.Empty())
	var xerr *ExtractError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "retrieve_stores", xerr.Op)
}
