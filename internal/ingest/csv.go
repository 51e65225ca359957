package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/export"
)

// Row is one input URL with the CSV fields that came with it.
type Row struct {
	// Index is the 1-based position among rows that carry a URL.
	Index     int
	URL       string
	URLColumn string
	// Extra holds the trimmed non-empty fields other than the URL and title
	// columns. They are merged over scraped metadata.
	Extra    catalog.Metadata
	Header   []string
	Original map[string]string
}

// FallbackMetadata builds a record from the row alone: every non-empty field
// except URL-like columns, then source_url.
func (r Row) FallbackMetadata() catalog.Metadata {
	var md catalog.Metadata
	for _, col := range r.Header {
		if isURLColumn(col) {
			continue
		}
		if v := strings.TrimSpace(r.Original[col]); v != "" {
			md.Set(col, v)
		}
	}
	md.Set("source_url", r.URL)
	return md
}

// Remaining converts the row for the export of unprocessed work.
func (r Row) Remaining() export.Remaining {
	return export.Remaining{
		Row:       r.Index,
		URL:       r.URL,
		URLColumn: r.URLColumn,
		Header:    r.Header,
		Original:  r.Original,
	}
}

func isURLColumn(name string) bool {
	switch strings.ToLower(name) {
	case "url", "link", "주소":
		return true
	}
	return false
}

func isSidecarColumn(name string) bool {
	return !isURLColumn(name) && strings.ToLower(name) != "title"
}

// ParseCSV reads an uploaded CSV. The input must be UTF-8 and a leading BOM is
// dropped. The URL column is the first header named url, link or 주소 in any
// case. Rows with a blank URL are skipped.
func ParseCSV(r io.Reader) ([]Row, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &InputError{Reason: reasonUnreadable, Err: err}
	}
	if !utf8.Valid(raw) {
		return nil, &InputError{Reason: reasonEncoding}
	}
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &InputError{Reason: reasonNoURLs}
	}
	if err != nil {
		return nil, &InputError{Reason: reasonUnreadable, Err: err}
	}
	urlColumn := ""
	for _, col := range header {
		if isURLColumn(col) {
			urlColumn = col
			break
		}
	}
	if urlColumn == "" {
		return nil, &InputError{Reason: reasonNoURLs}
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &InputError{Reason: reasonUnreadable, Err: err}
		}
		original := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				original[col] = record[i]
			} else {
				original[col] = ""
			}
		}
		url := strings.TrimSpace(original[urlColumn])
		if url == "" {
			continue
		}
		var extra catalog.Metadata
		for _, col := range header {
			if !isSidecarColumn(col) {
				continue
			}
			if v := strings.TrimSpace(original[col]); v != "" {
				extra.Set(col, v)
			}
		}
		rows = append(rows, Row{
			Index:     len(rows) + 1,
			URL:       url,
			URLColumn: urlColumn,
			Extra:     extra,
			Header:    header,
			Original:  original,
		})
	}
	if len(rows) == 0 {
		return nil, &InputError{Reason: reasonNoURLs}
	}
	return rows, nil
}

// RowsFromURLs wraps a plain URL list. Blank entries are skipped.
func RowsFromURLs(urls []string) []Row {
	rows := make([]Row, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		rows = append(rows, Row{Index: len(rows) + 1, URL: u, URLColumn: "URL"})
	}
	return rows
}

// validateSize rejects a list longer than limit. A non-positive limit allows any size.
func validateSize(rows []Row, limit int) error {
	if limit > 0 && len(rows) > limit {
		return &InputError{Reason: reasonTooMany, Err: fmt.Errorf("%d urls, limit %d", len(rows), limit)}
	}
	return nil
}
