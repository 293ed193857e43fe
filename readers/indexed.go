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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// IndexedReaderOptions configures the count-then-fetch API layout.
type IndexedReaderOptions struct {
	CountPath  string // path of the endpoint reporting the item total
	CountField string // JSON field holding the total
	ItemPath   string // path prefix of the per-item endpoint, followed by /<n>
	FirstIndex int    // index of the first item
	Logger     *zap.Logger
}

// ReaderOptionIndexed is a functional option for IndexedReaderOptions
type ReaderOptionIndexed func(*IndexedReaderOptions)

// WithIndexedPaths overrides the count and item endpoint paths.
func WithIndexedPaths(countPath, countField, itemPath string) ReaderOptionIndexed {
	return func(o *IndexedReaderOptions) {
		o.CountPath = countPath
		o.CountField = countField
		o.ItemPath = itemPath
	}
}

// WithIndexedLogger sets the logger used to report skipped items.
func WithIndexedLogger(l *zap.Logger) ReaderOptionIndexed {
	return func(o *IndexedReaderOptions) { o.Logger = l }
}

// IndexedReader implements core.DataSource for APIs that report a total and
// serve each item at its own 1-based index, like the store API:
//
//	GET <base>/number_stores      -> {"number_stores": 451}
//	GET <base>/store_details/<n>  -> {"index": ..., "store_code": ...}
//
// Items are fetched one at a time. An item that fails or comes back empty is
// skipped and recorded, not retried.
type IndexedReader struct {
	base    string
	fetcher *HTTPFetcher
	opts    IndexedReaderOptions
	logger  *zap.Logger

	counted bool
	total   int
	next    int
	columns []string
	seen    map[string]struct{}
	skipped []int
}

// NewIndexedReader creates a reader for the API rooted at baseURL.
// The fetcher carries the API key and timeouts.
func NewIndexedReader(baseURL string, fetcher *HTTPFetcher, options ...ReaderOptionIndexed) *IndexedReader {
	opts := IndexedReaderOptions{
		CountPath:  "number_stores",
		CountField: "number_stores",
		ItemPath:   "store_details",
		FirstIndex: 1,
		Logger:     zap.L(),
	}
	for _, o := range options {
		o(&opts)
	}
	return &IndexedReader{
		base:    strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		opts:    opts,
		logger:  opts.Logger.Named("indexed-reader"),
		seen:    make(map[string]struct{}),
	}
}

// Count asks the API for the item total.
func (r *IndexedReader) Count(ctx context.Context) (int, error) {
	if r.counted {
		return r.total, nil
	}
	url := r.base + "/" + r.opts.CountPath
	var body map[string]interface{}
	if err := r.fetcher.GetJSON(ctx, url, &body); err != nil {
		return 0, err
	}
	n, err := toCount(body[r.opts.CountField])
	if err != nil {
		return 0, &HTTPReaderError{Op: "count", URL: url, Err: err}
	}
	r.total = n
	r.counted = true
	r.next = r.opts.FirstIndex
	r.logger.Info("item count retrieved", zap.String("url", url), zap.Int("count", n))
	return n, nil
}

func toCount(v interface{}) (int, error) {
	switch t := v.(type) {
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return 0, err
			}
			i = int64(f)
		}
		if i < 0 {
			return 0, fmt.Errorf("negative count %d", i)
		}
		return int(i), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	case nil:
		return 0, fmt.Errorf("count field missing")
	default:
		return 0, fmt.Errorf("count field has type %T", v)
	}
}

// Read implements the core.DataSource interface.
func (r *IndexedReader) Read(ctx context.Context) (core.Record, error) {
	if _, err := r.Count(ctx); err != nil {
		return nil, err
	}

	last := r.opts.FirstIndex + r.total - 1
	for r.next <= last {
		if err := ctx.Err(); err != nil {
			return nil, &HTTPReaderError{Op: "read", URL: r.base, Err: err}
		}
		n := r.next
		r.next++

		rec, keys, err := r.fetchItem(ctx, n)
		if err != nil {
			r.skipped = append(r.skipped, n)
			r.logger.Warn("skipping item", zap.Int("index", n), zap.Error(err))
			continue
		}
		if len(keys) == 0 {
			r.skipped = append(r.skipped, n)
			r.logger.Warn("skipping empty item", zap.Int("index", n))
			continue
		}
		for _, k := range keys {
			if _, ok := r.seen[k]; !ok {
				r.seen[k] = struct{}{}
				r.columns = append(r.columns, k)
			}
		}
		return rec, nil
	}
	return nil, io.EOF
}

func (r *IndexedReader) fetchItem(ctx context.Context, n int) (core.Record, []string, error) {
	url := fmt.Sprintf("%s/%s/%d", r.base, r.opts.ItemPath, n)
	data, err := r.fetcher.Get(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	doc, err := NewJSONDocumentReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, &HTTPReaderError{Op: "parse", URL: url, Err: err}
	}
	rec, err := doc.Read(ctx)
	if err == io.EOF {
		return core.Record{}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return rec, doc.Columns(), nil
}

// Columns returns the union of item keys in first-seen order.
func (r *IndexedReader) Columns() []string {
	return r.columns
}

// Skipped returns the indexes that were skipped so far.
func (r *IndexedReader) Skipped() []int {
	return r.skipped
}

// Close implements the core.DataSource interface.
func (r *IndexedReader) Close() error {
	return nil
}
