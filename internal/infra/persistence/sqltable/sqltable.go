// Package sqltable holds the SQL shape shared by the relational record
// stores: one TEXT column per record field plus a position column that keeps
// the table order stable across rewrites.
package sqltable

import (
	"database/sql"
	"fmt"
	"strings"

	"mortuary/pkg/domain"
)

// Table names used by the relational stores.
const (
	RecordsTable = "mortuary_records"
	MetaTable    = "mortuary_store_meta"
)

// Placeholder renders the bind parameter for the 1-based argument n.
type Placeholder func(n int) string

// Question renders SQLite style placeholders.
func Question(int) string { return "?" }

// Dollar renders PostgreSQL style placeholders.
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// ColumnDDL is the definition used for every record column.
const ColumnDDL = "TEXT NOT NULL DEFAULT ''"

// CreateRecordsTable returns the DDL for the records table.
func CreateRecordsTable() string {
	defs := make([]string, 0, len(domain.Columns)+1)
	defs = append(defs, "position INTEGER NOT NULL")
	for _, col := range domain.Columns {
		defs = append(defs, col+" "+ColumnDDL)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", RecordsTable, strings.Join(defs, ",\n\t"))
}

// CreateMetaTable returns the DDL for the single-row revision table.
func CreateMetaTable() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY,
	revision BIGINT NOT NULL
)`, MetaTable)
}

// SelectRecords returns the query listing every record in stored order.
func SelectRecords() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY position", strings.Join(domain.Columns, ", "), RecordsTable)
}

// SelectRevision returns the query reading the current revision.
func SelectRevision(ph Placeholder) string {
	return fmt.Sprintf("SELECT revision FROM %s WHERE id = %s", MetaTable, ph(1))
}

// InsertRecord returns the insert statement for one positioned record.
func InsertRecord(ph Placeholder) string {
	cols := append([]string{"position"}, domain.Columns...)
	params := make([]string, len(cols))
	for i := range cols {
		params[i] = ph(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", RecordsTable, strings.Join(cols, ", "), strings.Join(params, ", "))
}

// InsertArgs returns the bind arguments matching InsertRecord.
func InsertArgs(position int, r domain.Record) []any {
	args := make([]any, 0, len(domain.Columns)+1)
	args = append(args, int64(position))
	for _, v := range r.Values() {
		args = append(args, v)
	}
	return args
}

// ScanRecords reads rows produced by SelectRecords. NULL reads as "".
func ScanRecords(rows *sql.Rows) ([]domain.Record, error) {
	var out []domain.Record
	for rows.Next() {
		cells := make([]sql.NullString, len(domain.Columns))
		dest := make([]any, len(cells))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		values := make([]string, len(cells))
		for i, c := range cells {
			values[i] = c.String
		}
		out = append(out, domain.RecordFromValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// MissingColumns returns the canonical columns absent from existing.
func MissingColumns(existing []string) []string {
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[strings.ToLower(c)] = true
	}
	var missing []string
	for _, col := range domain.Columns {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	return missing
}
