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

// Package extract pulls each source into a core.Table.
//
// Every method returns a non-nil table. On failure the table is empty and the
// error says why, so callers can tell a failed source from an empty one.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/richardchch/Multinational-Database-Centralization/core"
	"github.com/richardchch/Multinational-Database-Centralization/readers"
)

// ErrNotConfigured is returned when a method's source was never configured.
var ErrNotConfigured = errors.New("source not configured")

// ExtractError records which extraction failed.
type ExtractError struct {
	Op     string // e.g. "read_table", "retrieve_pdf", "extract_s3"
	Source string // table name, URL or URI
	Err    error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s %s: %v", e.Op, e.Source, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// Extractor reads the pipeline's sources.
type Extractor struct {
	logger       *zap.Logger
	source       *readers.PostgresSource
	fetcher      *readers.HTTPFetcher
	storeBaseURL string
	storeFetcher *readers.HTTPFetcher
	s3Client     readers.S3GetObjectAPI
	s3Options    []readers.ReaderOptionS3
	storeOptions []readers.ReaderOptionIndexed
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithSourceDatabase sets the relational source used by ListTables and ReadTable.
func WithSourceDatabase(src *readers.PostgresSource) Option {
	return func(e *Extractor) { e.source = src }
}

// WithFetcher sets the HTTP fetcher used for the PDF and JSON documents.
func WithFetcher(f *readers.HTTPFetcher) Option {
	return func(e *Extractor) { e.fetcher = f }
}

// WithStoreAPI sets the store API root and the fetcher carrying its key.
func WithStoreAPI(baseURL string, f *readers.HTTPFetcher, opts ...readers.ReaderOptionIndexed) Option {
	return func(e *Extractor) {
		e.storeBaseURL = baseURL
		e.storeFetcher = f
		e.storeOptions = opts
	}
}

// WithS3Client sets the client used by ExtractFromS3.
func WithS3Client(c readers.S3GetObjectAPI) Option {
	return func(e *Extractor) { e.s3Client = c }
}

// WithS3Options sets the options used to build an S3 client when none was given.
func WithS3Options(opts ...readers.ReaderOptionS3) Option {
	return func(e *Extractor) { e.s3Options = opts }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: zap.L()}
	for _, o := range opts {
		o(e)
	}
	if e.fetcher == nil {
		e.fetcher = readers.NewHTTPFetcher()
	}
	e.logger = e.logger.Named("extractor")
	return e
}

// ListTables returns the tables of the source database.
func (e *Extractor) ListTables(ctx context.Context) ([]string, error) {
	if e.source == nil {
		return nil, e.fail("list_tables", "", ErrNotConfigured)
	}
	names, err := e.source.ListTables(ctx)
	if err != nil {
		return nil, e.fail("list_tables", "", err)
	}
	e.logger.Info("source tables", zap.Strings("tables", names))
	return names, nil
}

// ReadTable reads every row of a source database table.
func (e *Extractor) ReadTable(ctx context.Context, name string) (*core.Table, error) {
	if e.source == nil {
		return core.EmptyTable(name), e.fail("read_table", name, ErrNotConfigured)
	}
	reader, err := e.source.TableReader(ctx, name)
	if err != nil {
		return core.EmptyTable(name), e.fail("read_table", name, err)
	}
	return e.collect(ctx, "read_table", name, name, reader)
}

// RetrievePDFData extracts the tables of every page of the PDF at url.
func (e *Extractor) RetrievePDFData(ctx context.Context, url string) (*core.Table, error) {
	reader := readers.NewPDFReader(url, e.fetcher)
	t, err := e.collect(ctx, "retrieve_pdf", url, "card_details", reader)
	if err == nil {
		stats := reader.Stats()
		e.logger.Debug("pdf parsed",
			zap.Int("pages", stats.Pages),
			zap.Int("header_repeats", stats.HeaderRepeats))
	}
	return t, err
}

// ExtractFromS3 reads the CSV object at an s3://bucket/key address.
// Cells are kept as text; typing them is left to cleaning.
func (e *Extractor) ExtractFromS3(ctx context.Context, uri string) (*core.Table, error) {
	var (
		reader *readers.S3Reader
		err    error
	)
	opts := append([]readers.ReaderOptionS3{
		readers.WithS3CSVOptions(readers.WithCSVInferTypes(false)),
	}, e.s3Options...)
	if e.s3Client != nil {
		reader, err = readers.NewS3ReaderWithClient(e.s3Client, uri, opts...)
	} else {
		reader, err = readers.NewS3Reader(ctx, uri, opts...)
	}
	if err != nil {
		return core.EmptyTable(uri), e.fail("extract_s3", uri, err)
	}
	return e.collect(ctx, "extract_s3", uri, uri, reader)
}

// ExtractJSON reads the JSON document at url.
func (e *Extractor) ExtractJSON(ctx context.Context, url string) (*core.Table, error) {
	reader := readers.NewHTTPReader(url, e.fetcher)
	return e.collect(ctx, "extract_json", url, url, reader)
}

// NumberOfStores asks the store API how many stores there are.
func (e *Extractor) NumberOfStores(ctx context.Context) (int, error) {
	if e.storeFetcher == nil {
		return 0, e.fail("number_of_stores", "", ErrNotConfigured)
	}
	reader := readers.NewIndexedReader(e.storeBaseURL, e.storeFetcher, e.storeOptions...)
	n, err := reader.Count(ctx)
	if err != nil {
		return 0, e.fail("number_of_stores", e.storeBaseURL, err)
	}
	return n, nil
}

// RetrieveStores fetches every store, one request per store. Stores that fail
// to load are skipped.
func (e *Extractor) RetrieveStores(ctx context.Context) (*core.Table, error) {
	if e.storeFetcher == nil {
		return core.EmptyTable("stores"), e.fail("retrieve_stores", "", ErrNotConfigured)
	}
	opts := append([]readers.ReaderOptionIndexed{readers.WithIndexedLogger(e.logger)}, e.storeOptions...)
	reader := readers.NewIndexedReader(e.storeBaseURL, e.storeFetcher, opts...)

	n, err := reader.Count(ctx)
	if err != nil {
		return core.EmptyTable("stores"), e.fail("retrieve_stores", e.storeBaseURL, err)
	}
	if n == 0 {
		e.logger.Warn("store API reports no stores", zap.String("url", e.storeBaseURL))
		return core.EmptyTable("stores"), nil
	}

	t, err := e.collect(ctx, "retrieve_stores", e.storeBaseURL, "stores", reader)
	if skipped := reader.Skipped(); len(skipped) > 0 {
		e.logger.Warn("stores skipped",
			zap.Int("skipped", len(skipped)),
			zap.Int("expected", n),
			zap.Ints("indexes", skipped))
	}
	return t, err
}

func (e *Extractor) collect(ctx context.Context, op, source, name string, src core.DataSource) (*core.Table, error) {
	start := time.Now()
	t, err := core.CollectTable(ctx, name, src)
	if err != nil {
		return core.EmptyTable(name), e.fail(op, source, err)
	}
	e.logger.Info("extracted",
		zap.String("op", op),
		zap.String("source", source),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns)),
		zap.Duration("elapsed", time.Since(start)))
	return t, nil
}

func (e *Extractor) fail(op, source string, err error) error {
	xerr := &ExtractError{Op: op, Source: source, Err: err}
	e.logger.Error("extraction failed",
		zap.String("op", op),
		zap.String("source", source),
		zap.Error(err))
	return xerr
}
