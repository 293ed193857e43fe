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
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // PostgreSQL driver and identifier quoting

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// This file implements the source database side of extraction: a PostgresSource
// holding the connection pool, and PostgresReader streaming one query's rows.

// PostgresReaderError provides structured error information for Postgres reader operations
type PostgresReaderError struct {
	Op  string // Operation that failed (e.g., "connect", "query", "scan", "read")
	Err error  // Underlying error
}

func (e *PostgresReaderError) Error() string {
	return fmt.Sprintf("postgres reader %s: %v", e.Op, e.Err)
}

func (e *PostgresReaderError) Unwrap() error {
	return e.Err
}

// PostgresReaderStats holds statistics about the Postgres reader's performance
type PostgresReaderStats struct {
	RecordsRead     int64
	QueryDuration   time.Duration
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// PostgresReaderOptions configures the source connection pool
type PostgresReaderOptions struct {
	DSN             string        // Database connection string
	Schema          string        // Schema listed by ListTables
	MaxOpenConns    int           // Maximum open connections
	MaxIdleConns    int           // Maximum idle connections
	ConnMaxLifetime time.Duration // Maximum connection lifetime
	QueryTimeout    time.Duration // Limit on a whole query, from connecting to the last row
}

// PostgresReaderOption represents a configuration function for PostgresReaderOptions
type PostgresReaderOption func(*PostgresReaderOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresSchema sets the schema ListTables lists and TableReader reads from.
func WithPostgresSchema(schema string) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.Schema = schema
	}
}

// WithPostgresQueryTimeout bounds each query, including reading all of its rows.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.QueryTimeout = timeout
	}
}

// withDefaults applies default values to PostgresReaderOptions
func (opts PostgresReaderOptions) withDefaults() PostgresReaderOptions {
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 4
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 2
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	return opts
}

// PostgresSource is the legacy source database.
// sqlx.Open does not dial, so the first query is what connects.
type PostgresSource struct {
	db   *sqlx.DB
	opts PostgresReaderOptions
}

// NewPostgresSource opens a pool for the configured DSN.
func NewPostgresSource(options ...PostgresReaderOption) (*PostgresSource, error) {
	opts := PostgresReaderOptions{}
	for _, option := range options {
		option(&opts)
	}
	opts = opts.withDefaults()

	if opts.DSN == "" {
		return nil, &PostgresReaderError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}

	db, err := sqlx.Open("postgres", opts.DSN)
	if err != nil {
		return nil, &PostgresReaderError{Op: "connect", Err: err}
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	return &PostgresSource{db: db, opts: opts}, nil
}

// NewPostgresSourceFromDB wraps an existing handle.
func NewPostgresSourceFromDB(db *sqlx.DB, options ...PostgresReaderOption) *PostgresSource {
	opts := PostgresReaderOptions{}
	for _, option := range options {
		option(&opts)
	}
	return &PostgresSource{db: db, opts: opts.withDefaults()}
}

const listTablesQuery = `SELECT table_name FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`

// ListTables returns the base tables of the configured schema.
func (s *PostgresSource) ListTables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	var names []string
	if err := s.db.SelectContext(ctx, &names, listTablesQuery, s.opts.Schema); err != nil {
		return nil, &PostgresReaderError{Op: "list_tables", Err: err}
	}
	return names, nil
}

// TableReader returns a reader over every row of table in the configured schema.
func (s *PostgresSource) TableReader(ctx context.Context, table string) (*PostgresReader, error) {
	if table == "" {
		return nil, &PostgresReaderError{Op: "validate", Err: fmt.Errorf("table name is required")}
	}
	return s.Query(ctx, "SELECT * FROM "+pq.QuoteIdentifier(s.opts.Schema)+"."+pq.QuoteIdentifier(table))
}

// Query starts query and returns a reader over its rows. The query timeout
// runs until the reader is closed.
func (s *PostgresSource) Query(ctx context.Context, query string, params ...interface{}) (*PostgresReader, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	rows, err := s.db.QueryxContext(ctx, query, params...)
	if err != nil {
		cancel()
		return nil, &PostgresReaderError{Op: "query", Err: err}
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		cancel()
		return nil, &PostgresReaderError{Op: "columns", Err: err}
	}
	return &PostgresReader{
		rows:    rows,
		cancel:  cancel,
		columns: columns,
		stats: PostgresReaderStats{
			QueryDuration:   time.Since(start),
			NullValueCounts: make(map[string]int64),
		},
	}, nil
}

// Close releases the pool.
func (s *PostgresSource) Close() error {
	if err := s.db.Close(); err != nil {
		return &PostgresReaderError{Op: "close", Err: err}
	}
	return nil
}

// PostgresReader implements core.DataSource over a query result.
type PostgresReader struct {
	mu         sync.Mutex
	rows       *sqlx.Rows
	cancel     context.CancelFunc
	columns    []string
	isFinished bool
	stats      PostgresReaderStats
}

// Columns returns the result's column names in select order.
func (p *PostgresReader) Columns() []string {
	return p.columns
}

// Read implements the core.DataSource interface.
func (p *PostgresReader) Read(ctx context.Context) (core.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	startTime := time.Now()
	defer func() {
		p.stats.ReadDuration += time.Since(startTime)
		p.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &PostgresReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	if p.isFinished || p.rows == nil {
		return nil, io.EOF
	}

	if !p.rows.Next() {
		if err := p.rows.Err(); err != nil {
			return nil, &PostgresReaderError{Op: "read", Err: err}
		}
		p.isFinished = true
		return nil, io.EOF
	}

	raw := make(map[string]interface{}, len(p.columns))
	if err := p.rows.MapScan(raw); err != nil {
		return nil, &PostgresReaderError{Op: "scan", Err: err}
	}

	record := make(core.Record, len(raw))
	for k, v := range raw {
		if v == nil {
			p.stats.NullValueCounts[k]++
		}
		record[k] = convertPostgresValue(v)
	}
	p.stats.RecordsRead++
	return record, nil
}

// convertPostgresValue maps driver values onto the cell kinds the pipeline uses.
func convertPostgresValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// Close releases the result set. The pool stays open.
func (p *PostgresReader) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rows == nil {
		return nil
	}
	err := p.rows.Close()
	p.rows = nil
	if p.cancel != nil {
		p.cancel()
	}
	if err != nil {
		return &PostgresReaderError{Op: "close", Err: err}
	}
	return nil
}

// Stats returns statistics about the PostgreSQL reader's performance
func (p *PostgresReader) Stats() PostgresReaderStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	statsCopy := p.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(p.stats.NullValueCounts))
	for k, v := range p.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}
