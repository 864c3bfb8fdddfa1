package domain

import (
	"context"
	"errors"
)

// ErrRevisionConflict is returned by SaveAll when the stored table changed
// since the caller loaded it.
var ErrRevisionConflict = errors.New("record table changed since it was loaded")

// Table is a loaded copy of the persisted record set together with the
// revision it was read at.
type Table struct {
	Records  []Record
	Revision string
}

// Clone returns a deep copy of the table's record slice.
func (t Table) Clone() Table {
	out := Table{Revision: t.Revision, Records: make([]Record, len(t.Records))}
	copy(out.Records, t.Records)
	return out
}

// RecordStore is the persistence contract every backend satisfies. All
// writes are whole-table rewrites.
type RecordStore interface {
	// Initialize ensures the table exists with the full column schema. It is
	// idempotent and adds any columns an older table is missing.
	Initialize(ctx context.Context) error
	// LoadAll returns every stored record in stored order. Absent columns
	// read as empty strings.
	LoadAll(ctx context.Context) (Table, error)
	// SaveAll replaces the stored table with records. A non-empty
	// expectedRevision must match the current revision or ErrRevisionConflict
	// is returned and nothing is written. The new revision is returned.
	SaveAll(ctx context.Context, records []Record, expectedRevision string) (string, error)
	// Location describes where the table lives (a path or DSN-like name).
	Location() string
}
