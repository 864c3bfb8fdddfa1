package memory

import (
	"context"
	"errors"
	"testing"

	"mortuary/pkg/domain"
)

func TestStoreSaveLoadAndRevisions(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	tbl, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tbl.Records) != 0 || tbl.Revision != "0" {
		t.Fatalf("unexpected empty table %+v", tbl)
	}
	rev, err := s.SaveAll(ctx, []domain.Record{{RecordID: "a"}}, tbl.Revision)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rev != "1" {
		t.Fatalf("revision %s", rev)
	}
	if _, err := s.SaveAll(ctx, nil, tbl.Revision); !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := s.SaveAll(ctx, []domain.Record{{RecordID: "b"}}, ""); err != nil {
		t.Fatalf("unconditional save: %v", err)
	}
	state := s.ExportState()
	if len(state) != 1 || state[0].RecordID != "b" {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore(domain.Record{RecordID: "a", DeceasedName: "Jane"})
	tbl, _ := s.LoadAll(ctx)
	tbl.Records[0].DeceasedName = "mutated"
	again, _ := s.LoadAll(ctx)
	if again.Records[0].DeceasedName != "Jane" {
		t.Fatalf("store leaked internal slice")
	}
	if s.Location() == "" {
		t.Fatalf("expected location")
	}
}
