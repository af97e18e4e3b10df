// Package leadfile reads lead rows from CSV and XLSX files and maps them to
// raw leads.
package leadfile

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Row is one input record keyed by its original header.
type Row map[string]string

// MapRow pairs each header with the corresponding value in the row. Missing
// trailing values become empty strings and blank headers are dropped.
func MapRow(headers, values []string) Row {
	row := make(Row, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if i < len(values) {
			row[h] = strings.TrimSpace(values[i])
		} else {
			row[h] = ""
		}
	}
	return row
}

// Empty reports whether every value in the row is blank.
func (r Row) Empty() bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}

// ReadFile loads every data row of a .csv or .xlsx file.
func ReadFile(ctx context.Context, path string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return ReadCSVFile(ctx, path)
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	default:
		return nil, eris.Errorf("leadfile: unsupported file type %q", filepath.Ext(path))
	}
}
