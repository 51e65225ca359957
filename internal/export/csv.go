package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

const bom = "\ufeff"

// Remaining is one row the ingest did not process.
type Remaining struct {
	Row       int               `json:"row"`
	URL       string            `json:"url"`
	URLColumn string            `json:"-"`
	Header    []string          `json:"-"`
	Original  map[string]string `json:"original_row,omitempty"`
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if col == name {
			return i
		}
	}
	return 0
}

// BuildCSV renders rows as a BOM-prefixed CSV document. The header comes from
// the first row's original columns, or a lone URL column when there are none.
func BuildCSV(rows []Remaining) (string, error) {
	header := []string{"URL"}
	if len(rows) > 0 && len(rows[0].Header) > 0 {
		header = rows[0].Header
	}

	var buf bytes.Buffer
	buf.WriteString(bom)
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, len(header))
		if row.Original != nil {
			for i, col := range header {
				record[i] = row.Original[col]
			}
		} else {
			record[columnIndex(header, row.URLColumn)] = row.URL
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row %d: %w", row.Row, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}
