package module

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tyl-lang/tyl/internal/diag"
	"github.com/tyl-lang/tyl/internal/macro"
	"github.com/tyl-lang/tyl/internal/token"
)

// TestCircularImport reproduces spec §8 scenario S6: a.tyl imports b.tyl
// and b.tyl imports a.tyl back.
func TestCircularImport(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.tyl")
	bPath := filepath.Join(dir, "b.tyl")
	if err := os.WriteFile(aPath, []byte("use \"b.tyl\"\nfn main() -> int:\n    return 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bPath, []byte("use \"a.tyl\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	bag := diag.NewBag()
	l := NewLoader(bag, macro.NewRegistry(), []string{dir})
	_, err := l.LoadModule(aPath, "", token.Location{Filename: aPath, Line: 1, Column: 1})
	if err == nil {
		t.Fatalf("expected a circular import error")
	}
	if !bag.HasErrors() {
		t.Fatalf("expected a diagnostic to be recorded")
	}
	found := false
	for _, d := range bag.Items() {
		if strings.Contains(d.Message, "Circular import") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a diagnostic containing %q, got %+v", "Circular import", bag.Items())
	}
}

func TestResolveModulePathQualified(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(sub, "c.tyl")
	if err := os.WriteFile(target, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(diag.NewBag(), macro.NewRegistry(), []string{dir})
	got, err := l.ResolveModulePath("a::b::c", "")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Clean(target) {
		t.Fatalf("got %s want %s", got, target)
	}
}

func TestExtractExportsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.tyl")
	src := "const N :: 1\nfn helper() -> int:\n    return N\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(diag.NewBag(), macro.NewRegistry(), []string{dir})
	m, err := l.LoadModule(path, "", token.Location{})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Exports) == 0 {
		t.Fatalf("expected at least one export, got none")
	}
}
