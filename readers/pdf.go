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
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// PDFReaderError provides structured error information for PDF reader operations
type PDFReaderError struct {
	Op   string // Operation that failed (e.g., "fetch", "open", "page")
	Page int    // 1-based page number, 0 when not page specific
	Err  error
}

func (e *PDFReaderError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("pdf reader %s page %d: %v", e.Op, e.Page, e.Err)
	}
	return fmt.Sprintf("pdf reader %s: %v", e.Op, e.Err)
}

func (e *PDFReaderError) Unwrap() error {
	return e.Err
}

// PDFReaderStats holds statistics about the parsed document
type PDFReaderStats struct {
	Pages         int
	HeaderRepeats int // header rows found again on later pages and skipped
	RecordsRead   int64
	DocumentBytes int64
}

// PDFReader implements core.DataSource over the tables of a PDF document.
//
// Every page is expected to carry the same one-line-per-row table. The first
// text line of the document is the header; its words give the column names and
// their x positions anchor the columns. A word belongs to the last column that
// starts at or left of it.
type PDFReader struct {
	url     string
	fetcher *HTTPFetcher
	data    []byte

	loaded  bool
	columns []string
	rows    []core.Record
	pos     int
	stats   PDFReaderStats
}

// NewPDFReader creates a reader for the document at url.
func NewPDFReader(url string, fetcher *HTTPFetcher) *PDFReader {
	return &PDFReader{url: url, fetcher: fetcher}
}

// NewPDFReaderFromBytes creates a reader over an in-memory document.
func NewPDFReaderFromBytes(data []byte) *PDFReader {
	return &PDFReader{data: data}
}

// Columns returns the header names once the document has been parsed.
func (r *PDFReader) Columns() []string {
	return r.columns
}

// Read implements the core.DataSource interface
func (r *PDFReader) Read(ctx context.Context) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PDFReaderError{Op: "read", Err: err}
	}
	if !r.loaded {
		if err := r.load(ctx); err != nil {
			return nil, err
		}
	}
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	rec := r.rows[r.pos]
	r.pos++
	r.stats.RecordsRead++
	return rec, nil
}

// Close implements the core.DataSource interface
func (r *PDFReader) Close() error {
	return nil
}

// Stats returns statistics about the parsed document
func (r *PDFReader) Stats() PDFReaderStats {
	return r.stats
}

func (r *PDFReader) load(ctx context.Context) error {
	if r.data == nil {
		if r.fetcher == nil {
			return &PDFReaderError{Op: "fetch", Err: fmt.Errorf("no fetcher configured for %s", r.url)}
		}
		data, err := r.fetcher.Get(ctx, r.url)
		if err != nil {
			return &PDFReaderError{Op: "fetch", Err: err}
		}
		r.data = data
	}
	r.stats.DocumentBytes = int64(len(r.data))

	pages, err := extractPages(r.data)
	if err != nil {
		return err
	}
	r.stats.Pages = len(pages)

	columns, rows, repeats := assembleRows(pages)
	r.columns = columns
	r.rows = rows
	r.stats.HeaderRepeats = repeats
	r.loaded = true
	return nil
}

type pdfWord struct {
	X float64
	S string
}

type pdfLine struct {
	Y     float64
	Words []pdfWord
}

// extractPages turns each page into its text lines, top to bottom.
func extractPages(data []byte) (pages [][]pdfLine, err error) {
	// The parser panics on some malformed input.
	defer func() {
		if p := recover(); p != nil {
			pages = nil
			err = &PDFReaderError{Op: "parse", Err: fmt.Errorf("%v", p)}
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &PDFReaderError{Op: "open", Err: err}
	}

	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		textRows, err := page.GetTextByRow()
		if err != nil {
			return nil, &PDFReaderError{Op: "page", Page: i, Err: err}
		}
		lines := make([]pdfLine, 0, len(textRows))
		for _, row := range textRows {
			words := mergeGlyphs(row.Content)
			if len(words) == 0 {
				continue
			}
			lines = append(lines, pdfLine{Y: float64(row.Position), Words: words})
		}
		// PDF y grows upwards.
		sort.SliceStable(lines, func(a, b int) bool { return lines[a].Y > lines[b].Y })
		pages = append(pages, lines)
	}
	return pages, nil
}

// mergeGlyphs joins adjacent text runs into words, breaking on whitespace and on gaps.
func mergeGlyphs(texts []pdf.Text) []pdfWord {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].X < sorted[b].X })

	var words []pdfWord
	var cur strings.Builder
	var curX, end float64
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			words = append(words, pdfWord{X: curX, S: s})
		}
		cur.Reset()
	}

	for _, t := range sorted {
		if strings.TrimSpace(t.S) == "" {
			flush()
			continue
		}
		gap := 2.0
		if t.FontSize > 0 {
			gap = t.FontSize * 0.3
		}
		if cur.Len() > 0 && t.X-end > gap {
			flush()
		}
		if cur.Len() == 0 {
			curX = t.X
		}
		cur.WriteString(t.S)
		end = t.X + t.W
	}
	flush()
	return words
}

// assembleRows builds the table from page lines. It returns the header, the
// rows, and how many repeated header lines were skipped.
func assembleRows(pages [][]pdfLine) ([]string, []core.Record, int) {
	var (
		columns []string
		anchors []float64
		header  string
		rows    []core.Record
		repeats int
	)

	for _, lines := range pages {
		for _, line := range lines {
			if columns == nil {
				for _, w := range line.Words {
					columns = append(columns, w.S)
					anchors = append(anchors, w.X)
				}
				header = lineText(line)
				continue
			}
			if lineText(line) == header {
				// Later pages may shift the table; follow the new header.
				if len(line.Words) == len(anchors) {
					for i, w := range line.Words {
						anchors[i] = w.X
					}
				}
				repeats++
				continue
			}
			rows = append(rows, placeWords(line, columns, anchors))
		}
	}
	return columns, rows, repeats
}

func placeWords(line pdfLine, columns []string, anchors []float64) core.Record {
	const tolerance = 2.0
	parts := make([][]string, len(columns))
	for _, w := range line.Words {
		col := 0
		for i, a := range anchors {
			if w.X+tolerance >= a {
				col = i
			}
		}
		parts[col] = append(parts[col], w.S)
	}
	rec := make(core.Record, len(columns))
	for i, name := range columns {
		if len(parts[i]) == 0 {
			rec[name] = nil
			continue
		}
		rec[name] = strings.Join(parts[i], " ")
	}
	return rec
}

func lineText(line pdfLine) string {
	words := make([]string, len(line.Words))
	for i, w := range line.Words {
		words[i] = w.S
	}
	return strings.Join(words, " ")
}
