package tenant

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/careroute/intake-router/internal/catalog"
)

func TestResolve_KnownOrg(t *testing.T) {
	r := NewRegistry()
	r.Add("acme", catalog.New([]catalog.Program{{Name: "Housing"}}))
	r.Add(DefaultOrg, catalog.New([]catalog.Program{{Name: "Advocacy"}}))

	c := r.Resolve("acme")
	if _, ok := c.Program("Housing"); !ok {
		t.Error("Resolve(acme) did not return the acme catalog")
	}
}

func TestResolve_UnknownOrgAliasesToDefault(t *testing.T) {
	r := NewRegistry()
	r.Add(DefaultOrg, catalog.New([]catalog.Program{{Name: "Advocacy"}}))

	c := r.Resolve("nobody-registered-this")
	if _, ok := c.Program("Advocacy"); !ok {
		t.Error("unknown org did not resolve to the default catalog")
	}
}

func TestResolve_NoDefaultFallsBackToFirstLoaded(t *testing.T) {
	r := NewRegistry()
	r.Add("alpha", catalog.New([]catalog.Program{{Name: "First"}}))
	r.Add("beta", catalog.New([]catalog.Program{{Name: "Second"}}))

	c := r.Resolve("gamma")
	if _, ok := c.Program("First"); !ok {
		t.Error("expected fallback to the first-loaded catalog")
	}
}

func TestResolve_EmptyRegistryNeverNil(t *testing.T) {
	r := NewRegistry()

	c := r.Resolve("anything")
	if c == nil {
		t.Fatal("Resolve() returned nil")
	}
	if !c.Empty() {
		t.Errorf("empty registry resolved %d programs", c.Len())
	}
}

func TestEnsureDefault_AliasesFirstLoaded(t *testing.T) {
	r := NewRegistry()
	r.Add("acme", catalog.New([]catalog.Program{{Name: "Housing"}}))
	r.EnsureDefault()

	c := r.Resolve(DefaultOrg)
	if _, ok := c.Program("Housing"); !ok {
		t.Error("default tenant is not aliased to the first-loaded catalog")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "acme.yaml", "programs:\n  - name: Housing\n")
	writeFile(t, dir, "other.yml", "programs:\n  - name: Advocacy\n")
	writeFile(t, dir, "notes.txt", "not a catalog")

	r, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}

	if got := r.Orgs(); !reflect.DeepEqual(got, []string{"acme", "other", DefaultOrg}) {
		t.Errorf("Orgs() = %v", got)
	}
	if _, ok := r.Resolve("acme").Program("Housing"); !ok {
		t.Error("acme catalog missing Housing")
	}
	// First-loaded tenant serves as default when no default.yaml exists.
	if _, ok := r.Resolve(DefaultOrg).Program("Housing"); !ok {
		t.Error("default tenant is not the first-loaded catalog")
	}
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	r, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if !r.Resolve(DefaultOrg).Empty() {
		t.Error("missing directory should yield an empty default catalog")
	}
}

func TestLoadDir_BadFileFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "programs:\n  - name: [unclosed\n")

	if _, err := LoadDir(dir); err == nil {
		t.Fatal("LoadDir() error = nil, want parse failure")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}
