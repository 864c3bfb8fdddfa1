// Package csvfile persists the record table as a single UTF-8 CSV file with a
// header row. Every save rewrites the whole file.
package csvfile

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"mortuary/internal/tabular"
	"mortuary/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.RecordStore = (*Store)(nil)

// DefaultPath mirrors the conventional data directory layout.
const DefaultPath = "data/mortuary_records.csv"

// Store keeps the table in one CSV file. The revision is the SHA-256 of the
// file contents, so edits made by another process are detected on save.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store for path (DefaultPath when blank). The file is not
// touched until Initialize or LoadAll is called.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

// Location returns the CSV file path.
func (s *Store) Location() string { return s.path }

// Initialize creates the data directory and an empty table with the full
// header if the file does not exist yet.
func (s *Store) Initialize(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure()
}

func (s *Store) ensure() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create dirs: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	payload, err := encode(nil)
	if err != nil {
		return err
	}
	return writeAtomic(s.path, payload)
}

// LoadAll reads and aligns the table. Columns missing from the file read as
// empty strings and unknown columns are ignored. An empty file is an empty
// table.
func (s *Store) LoadAll(_ context.Context) (domain.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return domain.Table{}, err
	}
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return domain.Table{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	rev := revisionOf(payload)
	tbl, err := tabular.ReadCSV(bytes.NewReader(payload))
	if errors.Is(err, tabular.ErrNoHeader) {
		return domain.Table{Revision: rev}, nil
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return domain.Table{Records: tbl.Records(), Revision: rev}, nil
}

// SaveAll rewrites the file in canonical column order. The write goes to a
// temporary file that is renamed over the original.
func (s *Store) SaveAll(_ context.Context, records []domain.Record, expectedRevision string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return "", err
	}
	if expectedRevision != "" {
		current, err := os.ReadFile(s.path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", s.path, err)
		}
		if revisionOf(current) != expectedRevision {
			return "", domain.ErrRevisionConflict
		}
	}
	payload, err := encode(records)
	if err != nil {
		return "", err
	}
	if err := writeAtomic(s.path, payload); err != nil {
		return "", err
	}
	return revisionOf(payload), nil
}

func encode(records []domain.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := tabular.WriteCSV(&buf, tabular.FromRecords(records)); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

func revisionOf(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func writeAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
