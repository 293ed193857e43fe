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

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// Schema is the schema tables are read from.
	Schema   string

	QueryTimeout time.Duration
}

// credentialsFile mirrors the keys of the source database credentials file.
type credentialsFile struct {
	Host     string `yaml:"RDS_HOST"`
	Port     int    `yaml:"RDS_PORT"`
	User     string `yaml:"RDS_USER"`
	Password string `yaml:"RDS_PASSWORD"`
	Database string `yaml:"RDS_DATABASE"`
}

// LoadSourceCredentials reads the source database credentials from a YAML file.
// RDS_PORT defaults to 5432.
func LoadSourceCredentials(path string) (*PostgresConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSourceCredentials(data)
}

// ParseSourceCredentials parses the credentials file contents.
func ParseSourceCredentials(data []byte) (*PostgresConfig, error) {
	var creds credentialsFile
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials file: %w", err)
	}
	if creds.Port == 0 {
		creds.Port = 5432
	}

	cfg := &PostgresConfig{
		Host:         creds.Host,
		Port:         creds.Port,
		User:         creds.User,
		Password:     creds.Password,
		Database:     creds.Database,
		SSLMode:      getEnv("SOURCE_SSLMODE", "require"),
		Schema:       getEnv("SOURCE_SCHEMA", "public"),
		QueryTimeout: time.Duration(getEnvAsInt("SOURCE_QUERY_TIMEOUT_SECONDS", 300)) * time.Second,
	}
	if err := cfg.validate("source database"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *PostgresConfig) validate(what string) error {
	if c.Host == "" {
		return fmt.Errorf("%s host is required", what)
	}
	if c.User == "" {
		return fmt.Errorf("%s user is required", what)
	}
	if c.Database == "" {
		return fmt.Errorf("%s name is required", what)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New(what + " port is out of range")
	}
	return nil
}

// ConnectionString returns a postgres:// URL accepted by both lib/pq and pgx.
// User and password are percent-encoded, so any characters are safe.
func (c *PostgresConfig) ConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// String describes the connection without the password, for logs.
func (c *PostgresConfig) String() string {
	return fmt.Sprintf("%s@%s:%d/%s", c.User, c.Host, c.Port, c.Database)
}
