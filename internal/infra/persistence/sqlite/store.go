// Package sqlite persists the record table in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"mortuary/internal/infra/persistence/sqltable"
	"mortuary/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.RecordStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "data/mortuary.db"

// Store keeps one row per record plus a revision counter. Each save replaces
// every row inside a single transaction.
type Store struct {
	db          *sql.DB
	mu          sync.Mutex
	path        string
	initialized bool
}

// NewStore opens (creating if needed) the SQLite database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, path: path}, nil
}

// Location returns the database file path.
func (s *Store) Location() string { return s.path }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Initialize creates the tables and adds any record columns an older
// database lacks.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(ctx)
}

func (s *Store) ensure(ctx context.Context) error {
	if s.initialized {
		return nil
	}
	for _, stmt := range []string{sqltable.CreateRecordsTable(), sqltable.CreateMetaTable()} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("INSERT OR IGNORE INTO %s (id, revision) VALUES (1, 0)", sqltable.MetaTable)); err != nil {
		return fmt.Errorf("seed revision: %w", err)
	}
	existing, err := s.columns(ctx)
	if err != nil {
		return err
	}
	for _, col := range sqltable.MissingColumns(existing) {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", sqltable.RecordsTable, col, sqltable.ColumnDDL)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
	}
	s.initialized = true
	return nil
}

func (s *Store) columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT name FROM pragma_table_info('%s')", sqltable.RecordsTable))
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// LoadAll returns the records in stored order with the current revision.
func (s *Store) LoadAll(ctx context.Context) (domain.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return domain.Table{}, err
	}
	rows, err := s.db.QueryContext(ctx, sqltable.SelectRecords())
	if err != nil {
		return domain.Table{}, fmt.Errorf("select records: %w", err)
	}
	records, err := sqltable.ScanRecords(rows)
	_ = rows.Close()
	if err != nil {
		return domain.Table{}, err
	}
	rev, err := readRevision(ctx, s.db)
	if err != nil {
		return domain.Table{}, err
	}
	return domain.Table{Records: records, Revision: strconv.FormatInt(rev, 10)}, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readRevision(ctx context.Context, q querier) (int64, error) {
	var rev int64
	err := q.QueryRowContext(ctx, sqltable.SelectRevision(sqltable.Question), 1).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select revision: %w", err)
	}
	return rev, nil
}

// SaveAll replaces every row and bumps the revision in one transaction.
func (s *Store) SaveAll(ctx context.Context, records []domain.Record, expectedRevision string) (_ string, retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return "", err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	current, err := readRevision(ctx, tx)
	if err != nil {
		return "", err
	}
	if expectedRevision != "" && expectedRevision != strconv.FormatInt(current, 10) {
		return "", domain.ErrRevisionConflict
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+sqltable.RecordsTable); err != nil {
		return "", fmt.Errorf("clear records: %w", err)
	}
	insert := sqltable.InsertRecord(sqltable.Question)
	for i, r := range records {
		if _, err := tx.ExecContext(ctx, insert, sqltable.InsertArgs(i, r)...); err != nil {
			return "", fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	next := current + 1
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET revision = ? WHERE id = 1", sqltable.MetaTable), next); err != nil {
		return "", fmt.Errorf("bump revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return strconv.FormatInt(next, 10), nil
}
