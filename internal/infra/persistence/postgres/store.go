// Package postgres persists the record table in PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"mortuary/internal/infra/persistence/sqltable"
	"mortuary/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.RecordStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/mortuary?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps one row per record plus a revision counter row. Saves lock the
// counter row so two writers cannot interleave.
type Store struct {
	db          *sql.DB
	mu          sync.Mutex
	initialized bool
}

// NewStore opens a Postgres-backed store using dsn (falls back to defaultDSN)
// and verifies connectivity.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// Location names the backing table.
func (s *Store) Location() string { return "postgres://" + sqltable.RecordsTable }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Initialize creates the tables and adds any missing record columns.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(ctx)
}

func (s *Store) ensure(ctx context.Context) error {
	if s.initialized {
		return nil
	}
	stmts := []string{sqltable.CreateRecordsTable(), sqltable.CreateMetaTable()}
	for _, col := range domain.Columns {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", sqltable.RecordsTable, col, sqltable.ColumnDDL))
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	seed := fmt.Sprintf("INSERT INTO %s (id, revision) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING", sqltable.MetaTable)
	if _, err := s.db.ExecContext(ctx, seed, int64(1), int64(0)); err != nil {
		return fmt.Errorf("seed revision: %w", err)
	}
	s.initialized = true
	return nil
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
	rev, err := readRevision(ctx, s.db, "")
	if err != nil {
		return domain.Table{}, err
	}
	return domain.Table{Records: records, Revision: strconv.FormatInt(rev, 10)}, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readRevision(ctx context.Context, q querier, suffix string) (int64, error) {
	var rev int64
	err := q.QueryRowContext(ctx, sqltable.SelectRevision(sqltable.Dollar)+suffix, int64(1)).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select revision: %w", err)
	}
	return rev, nil
}

// SaveAll truncates and refills the records table and bumps the revision in
// one transaction.
func (s *Store) SaveAll(ctx context.Context, records []domain.Record, expectedRevision string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return "", err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	current, err := readRevision(ctx, tx, " FOR UPDATE")
	if err != nil {
		return "", err
	}
	if expectedRevision != "" && expectedRevision != strconv.FormatInt(current, 10) {
		return "", domain.ErrRevisionConflict
	}
	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+sqltable.RecordsTable); err != nil {
		return "", fmt.Errorf("truncate records: %w", err)
	}
	insert := sqltable.InsertRecord(sqltable.Dollar)
	for i, r := range records {
		if _, err := tx.ExecContext(ctx, insert, sqltable.InsertArgs(i, r)...); err != nil {
			return "", fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	next := current + 1
	upsert := fmt.Sprintf("INSERT INTO %s (id, revision) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET revision = EXCLUDED.revision", sqltable.MetaTable)
	if _, err := tx.ExecContext(ctx, upsert, int64(1), next); err != nil {
		return "", fmt.Errorf("bump revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	committed = true
	return strconv.FormatInt(next, 10), nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
