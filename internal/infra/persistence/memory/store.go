// Package memory provides an in-memory implementation of the record store
// used for tests and ephemeral environments.
package memory

import (
	"context"
	"strconv"
	"sync"

	"mortuary/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.RecordStore = (*Store)(nil)

// Store keeps the table in process memory. The revision is a counter bumped
// on every save.
type Store struct {
	mu       sync.RWMutex
	records  []domain.Record
	revision uint64
}

// NewStore returns an empty store, optionally seeded with records.
func NewStore(seed ...domain.Record) *Store {
	s := &Store{}
	if len(seed) > 0 {
		s.records = append([]domain.Record(nil), seed...)
		s.revision = 1
	}
	return s
}

// Location identifies the in-memory backend.
func (s *Store) Location() string { return "memory://mortuary_records" }

// Initialize is a no-op; the table always exists.
func (s *Store) Initialize(context.Context) error { return nil }

// LoadAll returns a copy of the stored records.
func (s *Store) LoadAll(context.Context) (domain.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Table{Records: s.snapshot(), Revision: s.rev()}, nil
}

// SaveAll replaces the stored records after checking the revision.
func (s *Store) SaveAll(_ context.Context, records []domain.Record, expectedRevision string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expectedRevision != "" && expectedRevision != s.rev() {
		return "", domain.ErrRevisionConflict
	}
	s.records = append([]domain.Record(nil), records...)
	s.revision++
	return s.rev(), nil
}

// ExportState returns a deep copy of the current records for tests.
func (s *Store) ExportState() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Store) snapshot() []domain.Record {
	out := make([]domain.Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) rev() string { return strconv.FormatUint(s.revision, 10) }
