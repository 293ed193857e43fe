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
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// Package readers provides implementations of core.DataSource for the pipeline's sources.
//
// This file implements the HTTP fetcher shared by the JSON, PDF and store readers,
// and HTTPReader, a DataSource over a JSON document served at a URL.

// HTTPReaderError provides structured error information for HTTP reader operations
type HTTPReaderError struct {
	Op         string // Operation that failed (e.g., "request", "status_check", "parse")
	StatusCode int    // HTTP status code if applicable
	URL        string // URL being accessed when error occurred
	Err        error  // Underlying error
}

func (e *HTTPReaderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("http reader %s [%d] %s: %v", e.Op, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("http reader %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *HTTPReaderError) Unwrap() error {
	return e.Err
}

// HTTPReaderStats holds statistics about the HTTP fetcher's requests
type HTTPReaderStats struct {
	RequestCount  int64           // Total HTTP requests made
	BytesRead     int64           // Total bytes read
	RetryCount    int64           // Number of retries performed
	RateLimitHits int64           // Number of 429 responses
	ResponseTimes []time.Duration // Response times for monitoring
}

// HTTPReaderOptions configures HTTP requests
type HTTPReaderOptions struct {
	APIKeyHeader     string        // Header carrying the API key, e.g. "x-api-key"
	APIKey           string        // API key sent on every request
	Timeout          time.Duration // Request timeout
	RetryAttempts    int           // Number of retry attempts (0 = single attempt)
	RetryDelay       time.Duration // Base delay between retries
	MaxResponseSize  int64         // Maximum response size in bytes
	ValidStatusCodes []int         // Valid HTTP status codes
	UserAgent        string        // User agent string
}

// ReaderOptionHTTP is a functional option for HTTPReaderOptions
type ReaderOptionHTTP func(*HTTPReaderOptions)

// WithHTTPAPIKey sends apiKey in the headerName header, e.g. "x-api-key".
func WithHTTPAPIKey(headerName, apiKey string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.APIKeyHeader = headerName
		opts.APIKey = apiKey
	}
}

func WithHTTPTimeout(timeout time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Timeout = timeout
	}
}

func WithHTTPRetries(attempts int, delay time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.RetryAttempts = attempts
		opts.RetryDelay = delay
	}
}

// WithHTTPUserAgent overrides the User-Agent header. Empty keeps the default.
func WithHTTPUserAgent(userAgent string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		if userAgent != "" {
			opts.UserAgent = userAgent
		}
	}
}

// HTTPFetcher performs GET requests with the configured API key, limits and retries.
type HTTPFetcher struct {
	client *http.Client
	opts   *HTTPReaderOptions
	stats  HTTPReaderStats
}

// NewHTTPFetcher creates a fetcher with configurable options
func NewHTTPFetcher(options ...ReaderOptionHTTP) *HTTPFetcher {
	opts := &HTTPReaderOptions{
		Timeout:          30 * time.Second,
		RetryDelay:       time.Second,
		MaxResponseSize:  100 * 1024 * 1024, // 100MB
		ValidStatusCodes: []int{200},
		UserAgent:        "mdc-centralize/1.0",
	}

	for _, option := range options {
		option(opts)
	}

	return &HTTPFetcher{client: &http.Client{Timeout: opts.Timeout}, opts: opts}
}

// Stats returns request statistics
func (f *HTTPFetcher) Stats() HTTPReaderStats {
	return f.stats
}

// Get fetches url and returns the body, retrying 429 and 5xx responses.
func (f *HTTPFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= f.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := f.opts.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &HTTPReaderError{Op: "retry_wait", URL: url, Err: ctx.Err()}
			}
			f.stats.RetryCount++
		}

		data, err := f.do(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var httpErr *HTTPReaderError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode == http.StatusTooManyRequests {
				f.stats.RateLimitHits++
				continue
			}
			if httpErr.StatusCode >= 500 {
				continue
			}
			if httpErr.StatusCode > 0 {
				break
			}
		}
	}

	return nil, lastErr
}

// GetJSON fetches url and decodes the body into v.
func (f *HTTPFetcher) GetJSON(ctx context.Context, url string, v interface{}) error {
	data, err := f.Get(ctx, url)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &HTTPReaderError{Op: "parse", URL: url, Err: err}
	}
	return nil
}

func (f *HTTPFetcher) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &HTTPReaderError{Op: "create_request", URL: url, Err: err}
	}

	req.Header.Set("User-Agent", f.opts.UserAgent)
	if f.opts.APIKeyHeader != "" {
		req.Header.Set(f.opts.APIKeyHeader, f.opts.APIKey)
	}

	requestStart := time.Now()
	resp, err := f.client.Do(req)
	f.stats.RequestCount++
	if err != nil {
		return nil, &HTTPReaderError{Op: "request", URL: url, Err: err}
	}
	defer resp.Body.Close()

	f.stats.ResponseTimes = append(f.stats.ResponseTimes, time.Since(requestStart))

	if !f.isValidStatusCode(resp.StatusCode) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPReaderError{
			Op:         "status_check",
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxResponseSize))
	if err != nil {
		return nil, &HTTPReaderError{Op: "read_response", URL: url, Err: err}
	}

	f.stats.BytesRead += int64(len(data))
	return data, nil
}

// isValidStatusCode checks if the status code is considered valid
func (f *HTTPFetcher) isValidStatusCode(statusCode int) bool {
	for _, validCode := range f.opts.ValidStatusCodes {
		if statusCode == validCode {
			return true
		}
	}
	return false
}

// HTTPReader implements core.DataSource over a JSON document served at a URL.
// The document is fetched on the first Read.
type HTTPReader struct {
	url     string
	fetcher *HTTPFetcher
	doc     *JSONDocumentReader
}

// NewHTTPReader creates a reader for the JSON document at url.
// A nil fetcher gets one with default options.
func NewHTTPReader(url string, fetcher *HTTPFetcher) *HTTPReader {
	if fetcher == nil {
		fetcher = NewHTTPFetcher()
	}
	return &HTTPReader{url: url, fetcher: fetcher}
}

func (hr *HTTPReader) load(ctx context.Context) error {
	if hr.doc != nil {
		return nil
	}
	data, err := hr.fetcher.Get(ctx, hr.url)
	if err != nil {
		return err
	}
	doc, err := NewJSONDocumentReader(bytes.NewReader(data))
	if err != nil {
		return &HTTPReaderError{Op: "parse", URL: hr.url, Err: err}
	}
	hr.doc = doc
	return nil
}

// Read implements the core.DataSource interface
func (hr *HTTPReader) Read(ctx context.Context) (core.Record, error) {
	if err := hr.load(ctx); err != nil {
		return nil, err
	}
	return hr.doc.Read(ctx)
}

// Columns returns the document's column order once it has been fetched.
func (hr *HTTPReader) Columns() []string {
	if hr.doc == nil {
		return nil
	}
	return hr.doc.Columns()
}

// Close implements the core.DataSource interface
func (hr *HTTPReader) Close() error {
	return nil
}

// Stats returns the fetcher's statistics
func (hr *HTTPReader) Stats() HTTPReaderStats {
	return hr.fetcher.Stats()
}
