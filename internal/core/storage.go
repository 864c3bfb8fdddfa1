package core

import (
	"context"
	"fmt"
	"io"

	"mortuary/internal/infra/persistence/csvfile"
	"mortuary/internal/infra/persistence/memory"
	"mortuary/internal/infra/persistence/postgres"
	"mortuary/internal/infra/persistence/sqlite"
	"mortuary/pkg/domain"
)

// StorageDriver identifies a concrete record store implementation.
type StorageDriver string

const (
	StorageCSV      StorageDriver = "csv"      // single CSV file (default)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
)

// StorageConfig selects and parameterises the record store.
type StorageConfig struct {
	Driver      StorageDriver
	CSVPath     string
	SQLitePath  string
	PostgresDSN string
}

// OpenRecordStore returns the store described by cfg. Defaults to the CSV
// file when the driver is unset. Stores holding connections implement
// io.Closer.
func OpenRecordStore(ctx context.Context, cfg StorageConfig) (domain.RecordStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageCSV
	}
	switch driver {
	case StorageCSV:
		return csvfile.New(cfg.CSVPath), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	case StorageMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// CloseStore releases store resources when the backend holds any.
func CloseStore(store domain.RecordStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
