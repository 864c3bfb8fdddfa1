// Package config loads runtime settings from the environment. A .env file in
// the working directory, when present, is read first; variables already set
// in the process take precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mortuary/internal/core"
	"mortuary/internal/infra/blob"
	"mortuary/internal/infra/blob/s3"
)

// Prefix is prepended to every variable name.
const Prefix = "MORTUARY_"

// Config is the resolved runtime configuration.
type Config struct {
	StorageDriver  string
	DataDir        string
	CSVFile        string
	SQLitePath     string
	PostgresDSN    string
	BackupDriver   string
	BackupDir      string
	BackupS3       s3.Config
	LogLevel       string
	LogFormat      string
	HTTPAddr       string
	TimezoneName   string
	Location       *time.Location
	DotEnvLoaded   bool
	DotEnvFilename string
}

// Load reads .env files (default ".env") and the MORTUARY_* variables.
// Missing .env files are not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var cfg Config
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
		cfg.DotEnvLoaded = true
		cfg.DotEnvFilename = f
	}
	return FromLookup(os.LookupEnv, cfg)
}

// FromLookup resolves settings through lookup. base carries fields that are
// not sourced from variables.
func FromLookup(lookup func(string) (string, bool), base Config) (Config, error) {
	get := func(name, def string) string {
		if v, ok := lookup(Prefix + name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	cfg := base
	cfg.StorageDriver = strings.ToLower(get("STORAGE_DRIVER", string(core.StorageCSV)))
	cfg.DataDir = get("DATA_DIR", "data")
	cfg.CSVFile = get("CSV_FILE", "mortuary_records.csv")
	cfg.SQLitePath = get("SQLITE_PATH", filepath.Join(cfg.DataDir, "mortuary.db"))
	cfg.PostgresDSN = get("POSTGRES_DSN", "")
	cfg.BackupDriver = strings.ToLower(get("BACKUP_DRIVER", "fs"))
	pathStyle, err := strconv.ParseBool(get("BACKUP_S3_PATH_STYLE", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("%sBACKUP_S3_PATH_STYLE: %w", Prefix, err)
	}
	cfg.BackupS3 = s3.Config{
		Bucket:    get("BACKUP_S3_BUCKET", ""),
		Region:    get("BACKUP_S3_REGION", ""),
		Endpoint:  get("BACKUP_S3_ENDPOINT", ""),
		Prefix:    get("BACKUP_S3_PREFIX", ""),
		PathStyle: pathStyle,
	}
	cfg.LogLevel = get("LOG_LEVEL", "info")
	cfg.LogFormat = get("LOG_FORMAT", "json")
	cfg.HTTPAddr = get("HTTP_ADDR", ":8080")
	cfg.TimezoneName = get("TIMEZONE", "Local")
	loc, err := time.LoadLocation(cfg.TimezoneName)
	if err != nil {
		return Config{}, fmt.Errorf("%sTIMEZONE: %w", Prefix, err)
	}
	cfg.Location = loc

	switch core.StorageDriver(cfg.StorageDriver) {
	case core.StorageCSV, core.StorageSQLite, core.StorageMemory:
	case core.StoragePostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("%sPOSTGRES_DSN is required for the postgres driver", Prefix)
		}
	default:
		return Config{}, fmt.Errorf("%sSTORAGE_DRIVER: unknown driver %q", Prefix, cfg.StorageDriver)
	}
	cfg.BackupDir = get("BACKUP_DIR", cfg.primaryDir())
	return cfg, nil
}

// CSVPath is the primary CSV file path.
func (c Config) CSVPath() string {
	if filepath.IsAbs(c.CSVFile) {
		return c.CSVFile
	}
	return filepath.Join(c.DataDir, c.CSVFile)
}

// primaryDir is the directory holding the primary file for file-backed
// drivers, and DataDir otherwise.
func (c Config) primaryDir() string {
	switch core.StorageDriver(c.StorageDriver) {
	case core.StorageCSV:
		return filepath.Dir(c.CSVPath())
	case core.StorageSQLite:
		return filepath.Dir(c.SQLitePath)
	default:
		return c.DataDir
	}
}

// Storage returns the record store selection.
func (c Config) Storage() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.StorageDriver),
		CSVPath:     c.CSVPath(),
		SQLitePath:  c.SQLitePath,
		PostgresDSN: c.PostgresDSN,
	}
}

// Backup returns the backup destination selection.
func (c Config) Backup() blob.Config {
	return blob.Config{Driver: c.BackupDriver, Dir: c.BackupDir, S3: c.BackupS3}
}
