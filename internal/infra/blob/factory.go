// Package blob selects the backup blob store for the configured driver.
package blob

import (
	"context"
	"fmt"

	"mortuary/internal/infra/blob/core"
	"mortuary/internal/infra/blob/fs"
	"mortuary/internal/infra/blob/memory"
	"mortuary/internal/infra/blob/s3"
)

// Config selects and parameterises a blob backend.
type Config struct {
	Driver string // fs|s3|memory (default fs)
	Dir    string // root directory for the fs driver
	S3     s3.Config
}

// Open returns the blob store described by cfg.
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	driver := core.Driver(cfg.Driver)
	if driver == "" {
		driver = core.DriverFilesystem
	}
	switch driver {
	case core.DriverFilesystem:
		return fs.New(cfg.Dir)
	case core.DriverS3:
		return s3.New(ctx, cfg.S3)
	case core.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
