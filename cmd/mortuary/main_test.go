package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mortuary/pkg/domain"
)

type env struct {
	dir     string
	envFile string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MORTUARY_DATA_DIR", dir)
	t.Setenv("MORTUARY_STORAGE_DRIVER", "csv")
	t.Setenv("MORTUARY_LOG_LEVEL", "error")
	t.Setenv("MORTUARY_TIMEZONE", "UTC")
	return env{dir: dir, envFile: filepath.Join(dir, "missing.env")}
}

func (e env) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(append([]string{"-env", e.envFile}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (e env) add(t *testing.T, args ...string) string {
	t.Helper()
	base := []string{"add", "-name", "Jane Doe", "-tag", "B-102", "-dod", "2024-03-01", "-location", "Drawer 4"}
	code, out, errOut := e.run(t, append(base, args...)...)
	require.Equal(t, 0, code, errOut)
	return strings.TrimSpace(out)
}

func (e env) list(t *testing.T, args ...string) []domain.Record {
	t.Helper()
	code, out, errOut := e.run(t, append([]string{"list", "-json"}, args...)...)
	require.Equal(t, 0, code, errOut)
	var records []domain.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	return records
}

func TestUsageErrors(t *testing.T) {
	e := newEnv(t)
	code, _, errOut := e.run(t)
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "usage: mortuary")

	code, _, errOut = e.run(t, "bury")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, `unknown command "bury"`)

	code, _, _ = e.run(t, "show")
	require.Equal(t, 2, code)

	code, _, _ = e.run(t, "list", "-status", "Buried")
	require.Equal(t, 2, code)

	code, _, _ = e.run(t, "init", "extra")
	require.Equal(t, 2, code)
}

func TestInitCreatesHeaderOnlyCSV(t *testing.T) {
	e := newEnv(t)
	code, out, errOut := e.run(t, "init")
	require.Equal(t, 0, code, errOut)
	path := filepath.Join(e.dir, "mortuary_records.csv")
	require.Contains(t, out, path)
	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strings.Join(domain.Columns, ",")+"\n", string(payload))
}

func TestAddReportsMissingFields(t *testing.T) {
	e := newEnv(t)
	code, _, errOut := e.run(t, "add", "-name", "Jane Doe")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "Body Tag Number, Date of Death, Storage Location")
	require.Empty(t, e.list(t))
}

func TestRecordLifecycle(t *testing.T) {
	e := newEnv(t)
	id := e.add(t, "-sex", "female", "-kin", "John Doe")

	records := e.list(t)
	require.Len(t, records, 1)
	require.Equal(t, id, records[0].RecordID)
	require.Equal(t, "Female", records[0].Sex)
	require.Equal(t, "In Storage", records[0].ReleaseStatus)

	code, out, errOut := e.run(t, "update", "-id", id, "-remarks", "family notified")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "updated "+id)

	code, out, errOut = e.run(t, "show", "-id", id, "-json")
	require.Equal(t, 0, code, errOut)
	var rec domain.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	require.Equal(t, "family notified", rec.Remarks)
	require.Equal(t, "John Doe", rec.NextOfKin, "fields not named on the command line are kept")

	code, out, errOut = e.run(t, "release", "-id", id)
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "released")

	require.Empty(t, e.list(t, "-status", "in storage"))
	require.Len(t, e.list(t, "-status", "Released", "-q", "jane"), 1)

	code, _, errOut = e.run(t, "transfer", "-id", "nope")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "not found")
}

func TestListTable(t *testing.T) {
	e := newEnv(t)
	id := e.add(t)
	e.add(t, "-name", "John Roe", "-tag", "B-103")
	code, out, errOut := e.run(t, "list", "-q", "roe")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "John Roe")
	require.NotContains(t, out, domain.ShortID(id))
	require.Contains(t, out, "1 of 2 shown")
}

func TestExportImportRoundTrip(t *testing.T) {
	e := newEnv(t)
	e.add(t)
	e.add(t, "-name", "John Roe", "-tag", "B-103")

	out := filepath.Join(e.dir, "export.json")
	code, _, errOut := e.run(t, "export", "-o", out)
	require.Equal(t, 0, code, errOut)
	require.Contains(t, errOut, "exported 2 records")

	code, _, errOut = e.run(t, "export", "-o", e.dir, "-format", "csv", "-status", "Released")
	require.Equal(t, 0, code, errOut)
	require.FileExists(t, filepath.Join(e.dir, "mortuary_records_filtered.csv"))

	code, stdout, errOut := e.run(t, "export", "-format", "csv")
	require.Equal(t, 0, code, errOut)
	require.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), 3)

	e.add(t, "-name", "Ann Poe", "-tag", "B-104")
	require.Len(t, e.list(t), 3)

	code, _, errOut = e.run(t, "import", "-file", out)
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "rerun with -yes")
	require.Len(t, e.list(t), 3)

	code, stdout, errOut = e.run(t, "import", "-file", out, "-yes")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, stdout, "imported 2 records")
	require.Len(t, e.list(t), 2)
}

func TestImportRejectsUnrecognisedFile(t *testing.T) {
	e := newEnv(t)
	e.add(t)
	bad := filepath.Join(e.dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("foo,bar\n1,2\n"), 0o600))
	code, _, errOut := e.run(t, "import", "-file", bad, "-yes")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "no recognised columns")
	require.Len(t, e.list(t), 1)
}

func TestBackupWritesBesidePrimary(t *testing.T) {
	e := newEnv(t)
	e.add(t)
	code, out, errOut := e.run(t, "backup")
	require.Equal(t, 0, code, errOut)
	path := strings.TrimSpace(out)
	require.Equal(t, e.dir, filepath.Dir(path))
	require.True(t, strings.HasPrefix(filepath.Base(path), "mortuary_records_backup_"))
	require.FileExists(t, path)

	code, out, errOut = e.run(t, "backups")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, filepath.Base(path))
}

func TestMainUsesExitFunc(t *testing.T) {
	e := newEnv(t)
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	defer func() { _ = devNull.Close() }()
	oldStdout, oldStderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = devNull, devNull
	defer func() { os.Stdout, os.Stderr = oldStdout, oldStderr }()

	os.Args = []string{"mortuary", "-env", e.envFile, "init"}
	main()
	os.Args = []string{"mortuary", "-env", e.envFile, "nope"}
	main()
	require.Equal(t, []int{0, 2}, codes)
}
