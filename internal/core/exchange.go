package core

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"mortuary/internal/tabular"
	"mortuary/pkg/domain"
)

// FilteredExportBase names exports of a filtered view.
const FilteredExportBase = "mortuary_records_filtered"

// ImportSummary describes a completed import.
type ImportSummary struct {
	Rows           int      `json:"rows"`
	MissingColumns []string `json:"missing_columns,omitempty"`
	UnknownColumns []string `json:"unknown_columns,omitempty"`
	AssignedIDs    int      `json:"assigned_ids"`
}

// ImportReplace parses an external table, aligns it to the canonical schema
// and replaces the whole store with it. Parsing and alignment finish before
// anything is written; any failure there is an *ImportError and the store is
// untouched. This is destructive: existing records not in the input are gone.
func (s *Service) ImportReplace(ctx context.Context, r io.Reader, format tabular.Format) (ImportSummary, error) {
	var summary ImportSummary
	err := s.observe(ctx, "import", func() error {
		raw, err := tabular.Read(r, format)
		if err != nil {
			return &ImportError{Reason: "cannot parse " + string(format), Err: err}
		}
		if len(raw.MissingColumns(domain.Columns)) == len(domain.Columns) {
			return &ImportError{Reason: "no recognised columns in header " + strings.Join(raw.Header, ", ")}
		}
		records := raw.Records()
		seen := make(map[string]int, len(records))
		for i := range records {
			id := strings.TrimSpace(records[i].RecordID)
			if id == "" {
				id = s.uniqueID(records)
				summary.AssignedIDs++
			}
			if prev, dup := seen[id]; dup {
				return &ImportError{Reason: fmt.Sprintf("duplicate record_id %q in rows %d and %d", id, prev+1, i+1)}
			}
			seen[id] = i
			records[i].RecordID = id
		}
		records, coercions := domain.NormalizeAll(records)
		s.reportCoercions("import", coercions)

		s.mu.Lock()
		defer s.mu.Unlock()
		current, err := s.store.LoadAll(ctx)
		if err != nil {
			return err
		}
		rev, err := s.store.SaveAll(ctx, records, current.Revision)
		if err != nil {
			return err
		}
		summary.Rows = len(records)
		summary.MissingColumns = raw.MissingColumns(domain.Columns)
		summary.UnknownColumns = raw.UnknownColumns(domain.Columns)
		s.metrics.RecordCount(len(records))
		s.logger.Warn("record table replaced by import",
			zap.Int("rows", summary.Rows),
			zap.Int("replaced_rows", len(current.Records)),
			zap.Strings("missing_columns", summary.MissingColumns),
			zap.Strings("unknown_columns", summary.UnknownColumns),
			zap.Int("assigned_ids", summary.AssignedIDs),
			zap.String("revision", rev),
		)
		return nil
	})
	return summary, err
}

// Export writes the records matching f to w and returns how many were
// written.
func (s *Service) Export(ctx context.Context, w io.Writer, f Filter, format tabular.Format) (int, error) {
	var n int
	err := s.observe(ctx, "export", func() error {
		tbl, err := s.load(ctx)
		if err != nil {
			return err
		}
		rows := f.Apply(tbl.Records)
		if err := tabular.EncodeRecords(w, rows, format); err != nil {
			return fmt.Errorf("encode export: %w", err)
		}
		n = len(rows)
		return nil
	})
	return n, err
}

// ExportFileName returns the download name for an export of f.
func ExportFileName(f Filter, format tabular.Format) string {
	if f.Active() {
		return format.FileName(FilteredExportBase)
	}
	return format.FileName("mortuary_records")
}
