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

// Package config loads run configuration from the environment, an optional
// .env file and the source database credentials file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultStoreAPIBaseURL = "https://aqj7u5id95.execute-api.eu-west-1.amazonaws.com/prod"
	DefaultCardPDFURL      = "https://data-handling-public.s3.eu-west-1.amazonaws.com/card_details.pdf"
	DefaultProductsS3URI   = "s3://data-handling-public/products.csv"
	DefaultDateEventsURL   = "https://data-handling-public.s3.eu-west-1.amazonaws.com/date_details.json"
)

// Config represents the application configuration.
type Config struct {
	// Database connections
	Source    *PostgresConfig // from the credentials file
	Warehouse *PostgresConfig

	StoreAPI StoreAPIConfig
	Sources  SourcesConfig
	AWS      AWSConfig

	ExpectedStoreCount int
	HTTPTimeout        time.Duration
	HTTPRetries        int
	HTTPUserAgent      string

	// Logging
	LogLevel  string
	LogFormat string

	// Snapshots are written only when SnapshotDir is set.
	SnapshotDir    string
	SnapshotFormat string
}

// StoreAPIConfig holds the store REST API settings.
type StoreAPIConfig struct {
	BaseURL string
	APIKey  string
}

// SourcesConfig names where each entity is read from.
type SourcesConfig struct {
	UsersTable    string
	OrdersTable   string
	CardPDFURL    string
	ProductsS3URI string
	DateEventsURL string

	// ProductsFormat overrides the format inferred from the object key.
	ProductsFormat string
}

// AWSConfig holds the S3 client settings. Static keys are optional; without
// them the default credential chain is used.
type AWSConfig struct {
	Region          string
	Profile         string
	Endpoint        string
	Anonymous       bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// LoadConfig loads configuration from envFiles (default ".env", missing files
// are ignored), the environment and the credentials file named by DB_CREDS_PATH.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Warehouse: LoadWarehouseConfig(),
		StoreAPI: StoreAPIConfig{
			BaseURL: strings.TrimRight(getEnv("STORE_API_BASE_URL", DefaultStoreAPIBaseURL), "/"),
			APIKey:  os.Getenv("STORE_API_KEY"),
		},
		Sources: SourcesConfig{
			UsersTable:     getEnv("USERS_TABLE", "legacy_users"),
			OrdersTable:    getEnv("ORDERS_TABLE", "orders_table"),
			CardPDFURL:     getEnv("CARD_PDF_URL", DefaultCardPDFURL),
			ProductsS3URI:  getEnv("PRODUCTS_S3_URI", DefaultProductsS3URI),
			ProductsFormat: strings.ToLower(os.Getenv("PRODUCTS_S3_FORMAT")),
			DateEventsURL:  getEnv("DATE_EVENTS_URL", DefaultDateEventsURL),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "eu-west-1"),
			Profile:         os.Getenv("AWS_PROFILE"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Anonymous:       getEnvAsBool("S3_ANONYMOUS", false),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		},
		ExpectedStoreCount: getEnvAsInt("EXPECTED_STORE_COUNT", 441),
		HTTPTimeout:        time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		HTTPRetries:        getEnvAsInt("HTTP_RETRIES", 2),
		HTTPUserAgent:      os.Getenv("HTTP_USER_AGENT"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		SnapshotDir:        os.Getenv("SNAPSHOT_DIR"),
		SnapshotFormat:     getEnv("SNAPSHOT_FORMAT", "parquet"),
	}

	source, err := LoadSourceCredentials(getEnv("DB_CREDS_PATH", "db_creds.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load source database credentials: %w", err)
	}
	cfg.Source = source

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWarehouseConfig loads the warehouse connection settings from the environment.
func LoadWarehouseConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:         getEnv("WAREHOUSE_HOST", "localhost"),
		Port:         getEnvAsInt("WAREHOUSE_PORT", 5432),
		User:         getEnv("WAREHOUSE_USER", "postgres"),
		Password:     os.Getenv("WAREHOUSE_PASSWORD"),
		Database:     getEnv("WAREHOUSE_DB", "sales_data"),
		SSLMode:      getEnv("WAREHOUSE_SSLMODE", "disable"),
		QueryTimeout: time.Duration(getEnvAsInt("WAREHOUSE_QUERY_TIMEOUT_SECONDS", 300)) * time.Second,
	}
}

// Validate ensures all required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Source == nil {
		return errors.New("source database configuration is required")
	}
	if err := c.Source.validate("source database"); err != nil {
		return err
	}
	if c.Warehouse == nil {
		return errors.New("warehouse configuration is required")
	}
	if err := c.Warehouse.validate("warehouse"); err != nil {
		return err
	}
	if c.Warehouse.Password == "" {
		return errors.New("WAREHOUSE_PASSWORD environment variable is required")
	}
	if c.StoreAPI.APIKey == "" {
		return errors.New("STORE_API_KEY environment variable is required")
	}
	if c.StoreAPI.BaseURL == "" {
		return errors.New("store API base URL is required")
	}
	if c.ExpectedStoreCount < 0 {
		return errors.New("expected store count cannot be negative")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP timeout must be positive")
	}
	if c.HTTPRetries < 0 {
		return errors.New("HTTP retries cannot be negative")
	}
	switch c.Sources.ProductsFormat {
	case "", "csv", "json", "jsonl", "ndjson":
	default:
		return fmt.Errorf("unsupported products format %q", c.Sources.ProductsFormat)
	}
	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		return errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}
	switch strings.ToLower(c.SnapshotFormat) {
	case "", "parquet", "csv", "jsonl", "json", "ndjson":
	default:
		return fmt.Errorf("unsupported snapshot format %q", c.SnapshotFormat)
	}
	return nil
}

func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// godotenv does not override variables already set in the environment.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
