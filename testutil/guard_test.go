package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		in                 string
		thirdParty, intern bool
	}{
		{"fmt", false, false},
		{"encoding/csv", false, false},
		{"go.uber.org/zap", true, false},
		{"github.com/xuri/excelize/v2", true, false},
		{"mortuary/pkg/domain", true, false},
		{"mortuary/internal/core", true, true},
		{"example.com/x/internal/y", true, false},
	}
	for _, c := range cases {
		if got := ThirdPartyImport(c.in); got != c.thirdParty {
			t.Errorf("ThirdPartyImport(%q)=%v want %v", c.in, got, c.thirdParty)
		}
		if got := InternalImport(c.in); got != c.intern {
			t.Errorf("InternalImport(%q)=%v want %v", c.in, got, c.intern)
		}
	}
	under := ImportUnder("mortuary/internal/httpapi")
	if !under("mortuary/internal/httpapi") || !under("mortuary/internal/httpapi/x") || under("mortuary/internal/httpapix") {
		t.Fatalf("ImportUnder matched unexpectedly")
	}
}

func writePkg(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return dir
}

func TestAssertNoDirectImportsPasses(t *testing.T) {
	dir := writePkg(t, map[string]string{
		"x.go":      "package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}",
		"x_test.go": "package tmp\nimport \"go.uber.org/zap\"\nvar _ = zap.L",
	})
	AssertNoDirectImports(t, dir, ThirdPartyImport, "test files are ignored")
}

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestViolationsAreReported(t *testing.T) {
	dir := writePkg(t, map[string]string{
		"a.go": "package tmp\nimport (\n\t\"strings\"\n\t\"mortuary/internal/core\"\n)\nvar _ = strings.ToLower\nvar _ core.Filter",
	})
	viols, err := directImportViolations(dir, InternalImport)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "mortuary/internal/core (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}
	var r recorder
	failIfViolations(&r, "layering", viols)
	if !strings.Contains(r.msg, "layering") || !strings.Contains(r.msg, "a.go") {
		t.Fatalf("unexpected message %q", r.msg)
	}
	r = recorder{}
	failIfViolations(&r, "layering", nil)
	if r.msg != "" {
		t.Fatalf("no violations should not fail")
	}
}

func TestUnparsableFileIsAnError(t *testing.T) {
	dir := writePkg(t, map[string]string{"bad.go": "package"})
	if _, err := directImportViolations(dir, InternalImport); err == nil {
		t.Fatalf("expected parse error")
	}
}
