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
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// S3ReaderError provides structured error information for S3 reader operations
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "parse_uri", "get_object", "read")
	Err error  // Underlying error
}

func (e *S3ReaderError) Error() string {
	return fmt.Sprintf("s3 reader %s: %v", e.Op, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// S3ReaderStats holds statistics about the S3 reader's performance
type S3ReaderStats struct {
	RecordsRead  int64         // Total records read
	BytesRead    int64         // Object size as reported by S3
	ReadDuration time.Duration // Total time spent reading
	LastReadTime time.Time     // Time of last read operation
}

// S3ReaderOptions configures the S3 reader behavior
type S3ReaderOptions struct {
	Region         string            // AWS region
	Profile        string            // Shared config profile to use
	Credentials    aws.Credentials   // Explicit credentials
	Anonymous      bool              // Send unsigned requests, for public buckets
	EndpointURL    string            // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool              // Use path-style addressing
	Format         string            // "csv", "json", "jsonl"; inferred from the key when empty
	CSVOptions     []ReaderOptionCSV // Applied when the object is read as CSV
}

// ReaderOptionS3 represents a configuration function for S3Reader
type ReaderOptionS3 func(*S3ReaderOptions)

func WithS3Region(region string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Region = region
	}
}

func WithS3Profile(profile string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Profile = profile
	}
}

func WithS3Credentials(creds aws.Credentials) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Credentials = creds
	}
}

func WithS3Anonymous(anonymous bool) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Anonymous = anonymous
	}
}

func WithS3Endpoint(endpoint string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.EndpointURL = endpoint
	}
}

func WithS3PathStyle(pathStyle bool) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.ForcePathStyle = pathStyle
	}
}

func WithS3Format(format string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Format = format
	}
}

// WithS3CSVOptions passes options to the CSV reader used for CSV objects.
func WithS3CSVOptions(options ...ReaderOptionCSV) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.CSVOptions = append(opts.CSVOptions, options...)
	}
}

// S3GetObjectAPI is the part of the S3 client the reader needs.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ParseS3URI splits "s3://bucket/key/with/slashes" into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	const scheme = "s3://"
	if !strings.HasPrefix(uri, scheme) {
		return "", "", &S3ReaderError{Op: "parse_uri", Err: fmt.Errorf("%q is not an s3:// address", uri)}
	}
	rest := uri[len(scheme):]
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", &S3ReaderError{Op: "parse_uri", Err: fmt.Errorf("%q must name a bucket and a key", uri)}
	}
	return bucket, key, nil
}

// S3Reader implements core.DataSource for one S3 object.
// The object is downloaded on the first Read and parsed according to its format.
type S3Reader struct {
	client  S3GetObjectAPI
	bucket  string
	key     string
	opts    S3ReaderOptions
	current core.DataSource
	stats   S3ReaderStats
}

// NewS3Reader creates a reader for the object at uri using an AWS client built from options.
func NewS3Reader(ctx context.Context, uri string, options ...ReaderOptionS3) (*S3Reader, error) {
	opts := S3ReaderOptions{}
	for _, option := range options {
		option(&opts)
	}

	cfg, err := createAWSConfig(ctx, opts)
	if err != nil {
		return nil, &S3ReaderError{Op: "create_aws_config", Err: err}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	return NewS3ReaderWithClient(client, uri, options...)
}

// NewS3ReaderWithClient creates a reader using an existing client.
func NewS3ReaderWithClient(client S3GetObjectAPI, uri string, options ...ReaderOptionS3) (*S3Reader, error) {
	opts := S3ReaderOptions{}
	for _, option := range options {
		option(&opts)
	}
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	return &S3Reader{client: client, bucket: bucket, key: key, opts: opts}, nil
}

// Read implements the core.DataSource interface
func (s *S3Reader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() {
		s.stats.ReadDuration += time.Since(start)
		s.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &S3ReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	if s.current == nil {
		if err := s.open(ctx); err != nil {
			return nil, err
		}
	}

	record, err := s.current.Read(ctx)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &S3ReaderError{Op: "read_record", Err: err}
	}
	s.stats.RecordsRead++
	return record, nil
}

// Columns returns the column order of the underlying format reader, when it has one.
func (s *S3Reader) Columns() []string {
	if c, ok := s.current.(core.Columned); ok {
		return c.Columns()
	}
	return nil
}

// Close implements the core.DataSource interface
func (s *S3Reader) Close() error {
	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	return err
}

// Stats returns S3 reader performance statistics
func (s *S3Reader) Stats() S3ReaderStats {
	return s.stats
}

func (s *S3Reader) open(ctx context.Context) error {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return &S3ReaderError{Op: "get_object", Err: fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key, err)}
	}
	if result.ContentLength != nil {
		s.stats.BytesRead = *result.ContentLength
	}

	reader, err := s.createReaderForObject(result.Body)
	if err != nil {
		result.Body.Close()
		return &S3ReaderError{Op: "open_object", Err: err}
	}
	s.current = reader
	return nil
}

// createReaderForObject creates the appropriate reader based on the format or file extension
func (s *S3Reader) createReaderForObject(body io.ReadCloser) (core.DataSource, error) {
	format := s.opts.Format
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(s.key)), ".")
	}

	switch format {
	case "json":
		defer body.Close()
		return NewJSONDocumentReader(body)
	case "jsonl", "ndjson":
		return NewJSONReader(body), nil
	default:
		return NewCSVReader(body, append([]ReaderOptionCSV{WithCSVHasHeaders(true)}, s.opts.CSVOptions...)...)
	}
}

// createAWSConfig creates AWS configuration from options
func createAWSConfig(ctx context.Context, opts S3ReaderOptions) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}

	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}

	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	switch {
	case opts.Credentials.AccessKeyID != "":
		configOpts = append(configOpts, config.WithCredentialsProvider(aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)))
	case opts.Anonymous:
		configOpts = append(configOpts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}

	return config.LoadDefaultConfig(ctx, configOpts...)
}
