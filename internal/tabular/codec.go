package tabular

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"mortuary/pkg/domain"
)

// Read parses an external table in the given format.
func Read(r io.Reader, format Format) (Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatXLSX:
		return ReadXLSX(r)
	case FormatJSON:
		return readJSON(r)
	default:
		return Table{}, fmt.Errorf("unsupported format %q", format)
	}
}

// EncodeRecords writes records in canonical column order using format.
func EncodeRecords(w io.Writer, records []domain.Record, format Format) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, FromRecords(records))
	case FormatXLSX:
		return WriteXLSX(w, FromRecords(records))
	case FormatJSON:
		if records == nil {
			records = []domain.Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// readJSON accepts an array of flat objects. Canonical columns come first in
// the header, any other keys follow in name order.
func readJSON(r io.Reader) (Table, error) {
	var objects []map[string]any
	if err := json.NewDecoder(r).Decode(&objects); err != nil {
		return Table{}, fmt.Errorf("decode json: %w", err)
	}
	seen := map[string]bool{}
	for _, obj := range objects {
		for k := range obj {
			seen[k] = true
		}
	}
	var header []string
	for _, col := range domain.Columns {
		if seen[col] {
			header = append(header, col)
			delete(seen, col)
		}
	}
	extra := make([]string, 0, len(seen))
	for k := range seen {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	header = append(header, extra...)

	t := Table{Header: header, Rows: make([][]string, len(objects))}
	for i, obj := range objects {
		row := make([]string, len(header))
		for c, name := range header {
			switch v := obj[name].(type) {
			case nil:
			case string:
				row[c] = v
			default:
				row[c] = fmt.Sprint(v)
			}
		}
		t.Rows[i] = row
	}
	return t, nil
}
