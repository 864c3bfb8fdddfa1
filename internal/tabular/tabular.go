// Package tabular reads and writes the record table in its interchange
// formats and aligns foreign tables to the canonical column schema.
package tabular

import (
	"errors"
	"fmt"
	"strings"

	"mortuary/pkg/domain"
)

// Format identifies an interchange encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ErrNoHeader is returned when an input table has no header row.
var ErrNoHeader = errors.New("table has no header row")

// ParseFormat resolves a format name, defaulting to CSV when blank.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, ".")))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format %q", name)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv"
	}
}

// FileName returns base with the extension for f.
func (f Format) FileName(base string) string {
	return base + "." + string(f)
}

// Table is an untyped header plus rows, as read from an external file.
type Table struct {
	Header []string
	Rows   [][]string
}

// Align projects the table onto columns: columns missing from the header are
// injected as empty strings, unknown columns are dropped and the result is
// ordered like columns. When a header name repeats, the first one wins.
func (t Table) Align(columns []string) [][]string {
	index := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	out := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		aligned := make([]string, len(columns))
		for c, col := range columns {
			if i, ok := index[col]; ok && i < len(row) {
				aligned[c] = row[i]
			}
		}
		out[r] = aligned
	}
	return out
}

// MissingColumns lists the canonical columns absent from the header.
func (t Table) MissingColumns(columns []string) []string {
	have := make(map[string]bool, len(t.Header))
	for _, name := range t.Header {
		have[name] = true
	}
	var missing []string
	for _, col := range columns {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// UnknownColumns lists header names that are not part of columns.
func (t Table) UnknownColumns(columns []string) []string {
	known := make(map[string]bool, len(columns))
	for _, col := range columns {
		known[col] = true
	}
	var unknown []string
	for _, name := range t.Header {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Records aligns the table to the canonical schema and converts each row.
func (t Table) Records() []domain.Record {
	rows := t.Align(domain.Columns)
	out := make([]domain.Record, len(rows))
	for i, row := range rows {
		out[i] = domain.RecordFromValues(row)
	}
	return out
}

// FromRecords builds a canonical table from records.
func FromRecords(records []domain.Record) Table {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Values()
	}
	return Table{Header: append([]string(nil), domain.Columns...), Rows: rows}
}
