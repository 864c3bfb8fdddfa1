package core

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	blobcore "mortuary/internal/infra/blob/core"
	"mortuary/internal/tabular"
)

// BackupStampLayout is the timestamp embedded in backup names.
const BackupStampLayout = "20060102_150405"

// BaseName returns the stem of a store location: the file name without its
// directory or extension.
func BaseName(location string) string {
	base := filepath.Base(filepath.ToSlash(location))
	if i := strings.Index(location, "://"); i >= 0 {
		base = filepath.Base(location[i+3:])
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// BackupPrefix is the key prefix shared by every backup of location.
func BackupPrefix(location string) string {
	return BaseName(location) + "_backup_"
}

// BackupName renders <base-name>_backup_<YYYYMMDD_HHMMSS>.csv.
func BackupName(location string, at time.Time) string {
	return BackupPrefix(location) + at.Format(BackupStampLayout) + ".csv"
}

// Backup writes a CSV snapshot of the persisted table to the backup store.
// The table is copied as stored, without enum normalization, and the primary
// is never modified.
func (s *Service) Backup(ctx context.Context) (blobcore.Info, error) {
	var info blobcore.Info
	err := s.observe(ctx, "backup", func() error {
		if s.backups == nil {
			return ErrBackupUnavailable
		}
		tbl, err := s.store.LoadAll(ctx)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := tabular.WriteCSV(&buf, tabular.FromRecords(tbl.Records)); err != nil {
			return fmt.Errorf("encode backup: %w", err)
		}
		key := BackupName(s.store.Location(), s.clock())
		info, err = s.backups.Put(ctx, key, bytes.NewReader(buf.Bytes()), blobcore.PutOptions{
			ContentType: tabular.FormatCSV.ContentType(),
			Metadata: map[string]string{
				"source":   s.store.Location(),
				"revision": tbl.Revision,
				"records":  strconv.Itoa(len(tbl.Records)),
			},
		})
		if err != nil {
			return fmt.Errorf("write backup %s: %w", key, err)
		}
		s.logger.Info("backup written",
			zap.String("key", info.Key),
			zap.String("destination", s.backups.Location()),
			zap.Int("records", len(tbl.Records)),
		)
		return nil
	})
	return info, err
}

// Backups lists the existing backups of the primary table, oldest first.
func (s *Service) Backups(ctx context.Context) ([]blobcore.Info, error) {
	var out []blobcore.Info
	err := s.observe(ctx, "backups", func() error {
		if s.backups == nil {
			return ErrBackupUnavailable
		}
		var err error
		out, err = s.backups.List(ctx, BackupPrefix(s.store.Location()))
		return err
	})
	return out, err
}
