package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"mortuary/internal/infra/persistence/sqltable"
	"mortuary/pkg/domain"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "mortuary.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTripAndOrder(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	records := []domain.Record{
		{RecordID: "z", DeceasedName: "Last Inserted First", ReleaseStatus: "In Storage"},
		{RecordID: "a", DeceasedName: "Jane Doe", Remarks: "multi\nline"},
	}
	rev, err := store.SaveAll(ctx, records, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	tbl, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tbl.Revision != rev || rev != "1" {
		t.Fatalf("unexpected revisions %s / %s", tbl.Revision, rev)
	}
	if len(tbl.Records) != 2 || tbl.Records[0] != records[0] || tbl.Records[1] != records[1] {
		t.Fatalf("unexpected records %+v", tbl.Records)
	}
	if _, err := store.SaveAll(ctx, tbl.Records, tbl.Revision); err != nil {
		t.Fatalf("resave: %v", err)
	}
	again, _ := store.LoadAll(ctx)
	if len(again.Records) != 2 || again.Records[0] != records[0] {
		t.Fatalf("round trip changed records %+v", again.Records)
	}
}

func TestStoreRevisionConflict(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	tbl, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := store.SaveAll(ctx, []domain.Record{{RecordID: "first"}}, tbl.Revision); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.SaveAll(ctx, []domain.Record{{RecordID: "stale"}}, tbl.Revision); !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	after, _ := store.LoadAll(ctx)
	if len(after.Records) != 1 || after.Records[0].RecordID != "first" {
		t.Fatalf("conflicting save leaked: %+v", after.Records)
	}
}

func TestInitializeAddsMissingColumns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")
	legacy, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (position INTEGER NOT NULL, record_id TEXT NOT NULL DEFAULT '', deceased_name TEXT NOT NULL DEFAULT '')", sqltable.RecordsTable)
	if _, err := legacy.DB().ExecContext(ctx, stmt); err != nil {
		t.Fatalf("legacy ddl: %v", err)
	}
	if _, err := legacy.DB().ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (position, record_id, deceased_name) VALUES (0, 'old', 'Legacy')", sqltable.RecordsTable)); err != nil {
		t.Fatalf("legacy insert: %v", err)
	}
	_ = legacy.Close()

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = store.Close() }()
	tbl, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tbl.Records) != 1 || tbl.Records[0].DeceasedName != "Legacy" || tbl.Records[0].Remarks != "" {
		t.Fatalf("unexpected migrated records %+v", tbl.Records)
	}
	cols, err := store.columns(ctx)
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	if missing := sqltable.MissingColumns(cols); len(missing) != 0 {
		t.Fatalf("columns still missing: %v", missing)
	}
}

func TestDefaultPathAndLocation(t *testing.T) {
	store := newTempStore(t)
	if filepath.Base(store.Location()) != "mortuary.db" {
		t.Fatalf("unexpected location %s", store.Location())
	}
}
