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

// Command centralize extracts the six sales entities, cleans them and replaces
// the matching dim_* tables in the warehouse.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"github.com/richardchch/Multinational-Database-Centralization/cleaning"
	"github.com/richardchch/Multinational-Database-Centralization/config"
	"github.com/richardchch/Multinational-Database-Centralization/core"
	"github.com/richardchch/Multinational-Database-Centralization/extract"
	"github.com/richardchch/Multinational-Database-Centralization/logging"
	"github.com/richardchch/Multinational-Database-Centralization/pipeline"
	"github.com/richardchch/Multinational-Database-Centralization/readers"
	"github.com/richardchch/Multinational-Database-Centralization/writers"
)

// Warehouse tables, one per entity.
const (
	TableUsers      = "dim_users"
	TableCards      = "dim_card_details"
	TableStores     = "dim_store_details"
	TableProducts   = "dim_products"
	TableOrders     = "dim_orders"
	TableDateEvents = "dim_date_times"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "centralize: %v\n", err)
		return 1
	}

	logger, err := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "centralize: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("configuration loaded",
		zap.Stringer("source", cfg.Source),
		zap.Stringer("warehouse", cfg.Warehouse),
		zap.String("store_api", cfg.StoreAPI.BaseURL))

	extractor := newExtractor(cfg, logger)

	warehouse, err := writers.NewWarehouseWriter(
		writers.WithWarehouseDSN(cfg.Warehouse.ConnectionString()),
		writers.WithWarehouseQueryTimeout(cfg.Warehouse.QueryTimeout),
		writers.WithWarehouseLogger(logger))
	if err != nil {
		logger.Error("warehouse writer", zap.Error(err))
		return 1
	}
	defer warehouse.Close(context.Background())

	var snapshots []core.TableSink
	if cfg.SnapshotDir != "" {
		format, err := writers.ParseOutputFormat(cfg.SnapshotFormat)
		if err != nil {
			logger.Error("snapshot format", zap.Error(err))
			return 1
		}
		snapshots = append(snapshots, writers.NewSnapshotSink(cfg.SnapshotDir, format, logger))
		logger.Info("snapshots enabled", zap.String("dir", cfg.SnapshotDir), zap.Stringer("format", format))
	}

	tasks, err := buildTasks(cfg, extractor, snapshots)
	if err != nil {
		logger.Error("building tasks", zap.Error(err))
		return 1
	}

	cleaner := cleaning.NewCleaner(cleaning.WithLogger(logger))
	pipeline.NewOrchestrator(cleaner, warehouse, pipeline.WithLogger(logger)).Run(ctx, tasks...)
	return 0
}

func newExtractor(cfg *config.Config, logger *zap.Logger) *extract.Extractor {
	httpOpts := []readers.ReaderOptionHTTP{
		readers.WithHTTPTimeout(cfg.HTTPTimeout),
		readers.WithHTTPRetries(cfg.HTTPRetries, time.Second),
		readers.WithHTTPUserAgent(cfg.HTTPUserAgent),
	}
	opts := []extract.Option{
		extract.WithLogger(logger),
		extract.WithFetcher(readers.NewHTTPFetcher(httpOpts...)),
		extract.WithStoreAPI(cfg.StoreAPI.BaseURL, readers.NewHTTPFetcher(
			append(httpOpts, readers.WithHTTPAPIKey("x-api-key", cfg.StoreAPI.APIKey))...)),
		extract.WithS3Options(s3Options(cfg.AWS, cfg.Sources.ProductsFormat)...),
	}

	source, err := readers.NewPostgresSource(
		readers.WithPostgresDSN(cfg.Source.ConnectionString()),
		readers.WithPostgresSchema(cfg.Source.Schema),
		readers.WithPostgresQueryTimeout(cfg.Source.QueryTimeout))
	if err != nil {
		// Users and orders report the missing source; the other entities still run.
		logger.Error("source database unavailable", zap.Error(err))
	} else {
		opts = append(opts, extract.WithSourceDatabase(source))
	}

	return extract.New(opts...)
}

func s3Options(c config.AWSConfig, format string) []readers.ReaderOptionS3 {
	opts := []readers.ReaderOptionS3{
		readers.WithS3Region(c.Region),
		readers.WithS3Profile(c.Profile),
		readers.WithS3Anonymous(c.Anonymous),
		readers.WithS3Format(format),
	}
	if c.Endpoint != "" {
		opts = append(opts, readers.WithS3Endpoint(c.Endpoint), readers.WithS3PathStyle(true))
	}
	if c.AccessKeyID != "" {
		opts = append(opts, readers.WithS3Credentials(aws.Credentials{
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			SessionToken:    c.SessionToken,
			Source:          "environment",
		}))
	}
	return opts
}

// buildTasks lists the entities in run order, stores last.
func buildTasks(cfg *config.Config, e *extract.Extractor, snapshots []core.TableSink) ([]*pipeline.Task, error) {
	src := cfg.Sources
	builders := []*pipeline.TaskBuilder{
		pipeline.NewTask(cleaning.EntityUsers).
			Extract(func(ctx context.Context) (*core.Table, error) {
				if tables, err := e.ListTables(ctx); err == nil {
					logging.FromContext(ctx).Debug("source tables", zap.Strings("tables", tables))
				}
				return e.ReadTable(ctx, src.UsersTable)
			}).
			Clean(cleaning.Users()).
			Load(TableUsers),
		pipeline.NewTask(cleaning.EntityCards).
			Extract(func(ctx context.Context) (*core.Table, error) {
				return e.RetrievePDFData(ctx, src.CardPDFURL)
			}).
			Clean(cleaning.Cards()).
			Load(TableCards),
		pipeline.NewTask(cleaning.EntityProducts).
			Extract(func(ctx context.Context) (*core.Table, error) {
				return e.ExtractFromS3(ctx, src.ProductsS3URI)
			}).
			Clean(cleaning.Products()).
			Load(TableProducts),
		pipeline.NewTask(cleaning.EntityOrders).
			Extract(func(ctx context.Context) (*core.Table, error) {
				return e.ReadTable(ctx, src.OrdersTable)
			}).
			Clean(cleaning.Orders()).
			Load(TableOrders),
		pipeline.NewTask(cleaning.EntityDateEvents).
			Extract(func(ctx context.Context) (*core.Table, error) {
				return e.ExtractJSON(ctx, src.DateEventsURL)
			}).
			Clean(cleaning.DateEvents()).
			Load(TableDateEvents),
		pipeline.NewTask(cleaning.EntityStores).
			Extract(e.RetrieveStores).
			Clean(cleaning.Stores(cfg.ExpectedStoreCount)).
			Load(TableStores),
	}

	tasks := make([]*pipeline.Task, 0, len(builders))
	for _, b := range builders {
		task, err := b.Snapshot(snapshots...).Build()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
