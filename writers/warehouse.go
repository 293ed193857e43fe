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
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// This file implements the warehouse loader. Each Replace drops the destination
// table, recreates it from the table's inferred column types and copies every
// row in, all inside one transaction.

// WarehouseWriterError wraps warehouse write errors with context about the operation.
type WarehouseWriterError struct {
	Op    string // The operation being performed (e.g., "connect", "drop", "copy")
	Table string // Destination table
	Err   error  // The underlying error
}

// Error returns the error string for WarehouseWriterError.
func (e *WarehouseWriterError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("warehouse writer %s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("warehouse writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for WarehouseWriterError.
func (e *WarehouseWriterError) Unwrap() error {
	return e.Err
}

// WarehouseWriterStats holds warehouse write statistics.
type WarehouseWriterStats struct {
	TablesReplaced   int64         // Tables committed
	TablesSkipped    int64         // Empty tables not loaded
	RecordsWritten   int64         // Rows copied across all tables
	TransactionCount int64         // Transactions committed
	WriteDuration    time.Duration // Time spent in Replace
	ConnectionTime   time.Duration // Time spent establishing the connection
	LastWriteTime    time.Time
}

// WarehouseConn is the part of *pgx.Conn the writer uses.
type WarehouseConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// Connector opens a warehouse connection.
type Connector func(ctx context.Context) (WarehouseConn, error)

// WarehouseWriterOptions configures the warehouse writer.
type WarehouseWriterOptions struct {
	DSN          string        // PostgreSQL connection string
	Connector    Connector     // Overrides DSN-based connection
	QueryTimeout time.Duration // Timeout for one Replace
	Logger       *zap.Logger
}

// WarehouseWriterOption represents a configuration function for WarehouseWriterOptions.
type WarehouseWriterOption func(*WarehouseWriterOptions)

// WithWarehouseDSN sets the PostgreSQL connection string.
func WithWarehouseDSN(dsn string) WarehouseWriterOption {
	return func(opts *WarehouseWriterOptions) {
		opts.DSN = dsn
	}
}

// WithConnector sets the function used to open the connection.
func WithConnector(c Connector) WarehouseWriterOption {
	return func(opts *WarehouseWriterOptions) {
		opts.Connector = c
	}
}

// WithWarehouseQueryTimeout bounds each Replace.
func WithWarehouseQueryTimeout(timeout time.Duration) WarehouseWriterOption {
	return func(opts *WarehouseWriterOptions) {
		opts.QueryTimeout = timeout
	}
}

// WithWarehouseLogger sets the logger.
func WithWarehouseLogger(l *zap.Logger) WarehouseWriterOption {
	return func(opts *WarehouseWriterOptions) {
		opts.Logger = l
	}
}

// WarehouseWriter fully replaces warehouse tables. It implements core.TableSink.
//
// The connection is opened on the first non-empty Replace and reused until Close.
type WarehouseWriter struct {
	mu     sync.Mutex
	opts   WarehouseWriterOptions
	conn   WarehouseConn
	logger *zap.Logger
	stats  WarehouseWriterStats
}

// NewWarehouseWriter creates a writer. It does not connect.
func NewWarehouseWriter(options ...WarehouseWriterOption) (*WarehouseWriter, error) {
	opts := WarehouseWriterOptions{
		QueryTimeout: 5 * time.Minute,
		Logger:       zap.L(),
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Connector == nil {
		if opts.DSN == "" {
			return nil, &WarehouseWriterError{Op: "validate", Err: errors.New("dsn is required")}
		}
		dsn := opts.DSN
		opts.Connector = func(ctx context.Context) (WarehouseConn, error) {
			conn, err := pgx.Connect(ctx, dsn)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}
	}

	return &WarehouseWriter{opts: opts, logger: opts.Logger.Named("warehouse")}, nil
}

// Replace implements core.TableSink.
func (w *WarehouseWriter) Replace(ctx context.Context, t *core.Table, name string) (core.Outcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	defer func() {
		w.stats.WriteDuration += time.Since(start)
		w.stats.LastWriteTime = time.Now()
	}()

	if name == "" {
		err := &WarehouseWriterError{Op: "validate", Err: errors.New("destination table name is required")}
		return core.Outcome{Status: core.StatusLoadFailed, Err: err}, err
	}
	if t.Empty() {
		w.stats.TablesSkipped++
		w.logger.Info("no data to upload", zap.String("table", name))
		return core.Outcome{Status: core.StatusSkipped}, nil
	}

	if w.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.QueryTimeout)
		defer cancel()
	}

	n, err := w.replace(ctx, t, name)
	if err != nil {
		w.logger.Error("upload failed", zap.String("table", name), zap.Error(err))
		return core.Outcome{Status: core.StatusLoadFailed, Err: err}, err
	}

	w.stats.TablesReplaced++
	w.stats.RecordsWritten += n
	w.stats.TransactionCount++
	w.logger.Info("table replaced",
		zap.String("table", name),
		zap.Int64("rows", n),
		zap.Duration("elapsed", time.Since(start)))
	return core.Outcome{Status: core.StatusOK, Rows: int(n)}, nil
}

func (w *WarehouseWriter) replace(ctx context.Context, t *core.Table, name string) (int64, error) {
	conn, err := w.connection(ctx)
	if err != nil {
		return 0, err
	}

	kinds := InferKinds(t)
	rows, err := tableRows(t, kinds)
	if err != nil {
		return 0, &WarehouseWriterError{Op: "convert", Table: name, Err: err}
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		// The connection may be gone; reconnect on the next call.
		w.dropConnection(ctx)
		return 0, &WarehouseWriterError{Op: "begin", Table: name, Err: err}
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback(ctx)

	ident := pgx.Identifier{name}
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize()); err != nil {
		return 0, &WarehouseWriterError{Op: "drop", Table: name, Err: err}
	}
	if _, err := tx.Exec(ctx, createTableSQL(name, t.Columns, kinds)); err != nil {
		return 0, &WarehouseWriterError{Op: "create", Table: name, Err: err}
	}

	n, err := tx.CopyFrom(ctx, ident, t.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, &WarehouseWriterError{Op: "copy", Table: name, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, &WarehouseWriterError{Op: "commit", Table: name, Err: err}
	}
	return n, nil
}

func (w *WarehouseWriter) connection(ctx context.Context) (WarehouseConn, error) {
	if w.conn != nil {
		return w.conn, nil
	}
	start := time.Now()
	conn, err := w.opts.Connector(ctx)
	if err != nil {
		return nil, &WarehouseWriterError{Op: "connect", Err: err}
	}
	w.stats.ConnectionTime = time.Since(start)
	w.conn = conn
	w.logger.Info("connected to warehouse", zap.Duration("elapsed", w.stats.ConnectionTime))
	return conn, nil
}

func (w *WarehouseWriter) dropConnection(ctx context.Context) {
	if w.conn == nil {
		return
	}
	if err := w.conn.Close(ctx); err != nil {
		w.logger.Warn("closing broken connection", zap.Error(err))
	}
	w.conn = nil
}

// createTableSQL builds the CREATE TABLE statement for the columns.
func createTableSQL(name string, columns []string, kinds []ColumnKind) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pgx.Identifier{c}.Sanitize() + " " + kinds[i].SQLType()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", pgx.Identifier{name}.Sanitize(), strings.Join(defs, ", "))
}

// tableRows converts the table to COPY rows in column order.
func tableRows(t *core.Table, kinds []ColumnKind) ([][]interface{}, error) {
	rows := make([][]interface{}, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]interface{}, len(t.Columns))
		for j, c := range t.Columns {
			v, err := convertValue(r[c], kinds[j])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, c, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows, nil
}

// Stats returns warehouse write statistics.
func (w *WarehouseWriter) Stats() WarehouseWriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close releases the connection, if one was opened.
func (w *WarehouseWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close(ctx)
	w.conn = nil
	if err != nil {
		return &WarehouseWriterError{Op: "close", Err: err}
	}
	return nil
}
