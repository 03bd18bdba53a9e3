// Package tenant maps organization keys to their catalogs. Each tenant is
// an isolated deployment with its own program/service catalog; the
// reserved key "default" always resolves.
package tenant

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/careroute/intake-router/internal/catalog"
)

// DefaultOrg is the tenant key every lookup falls back to.
const DefaultOrg = "default"

// Registry manages tenant catalogs. It is populated once at startup and
// read-only afterwards.
type Registry struct {
	catalogs map[string]*catalog.Catalog
	order    []string
}

// NewRegistry creates an empty tenant registry.
func NewRegistry() *Registry {
	return &Registry{
		catalogs: make(map[string]*catalog.Catalog),
	}
}

// Add registers a catalog under an organization key. Re-adding a key
// replaces the catalog but keeps its original position in load order.
func (r *Registry) Add(org string, c *catalog.Catalog) {
	if _, ok := r.catalogs[org]; !ok {
		r.order = append(r.order, org)
	}
	r.catalogs[org] = c
}

// Resolve returns the catalog for an organization key. Unknown keys are
// not an error: they alias to "default". The result is never nil.
func (r *Registry) Resolve(org string) *catalog.Catalog {
	if c, ok := r.catalogs[org]; ok {
		return c
	}
	if c, ok := r.catalogs[DefaultOrg]; ok {
		return c
	}
	if len(r.order) > 0 {
		return r.catalogs[r.order[0]]
	}
	return catalog.New(nil)
}

// Orgs returns the registered organization keys in load order.
func (r *Registry) Orgs() []string {
	return append([]string(nil), r.order...)
}

// EnsureDefault guarantees a "default" tenant exists: if none is
// registered, the first-loaded tenant is aliased to it, and an empty
// catalog is registered when there are no tenants at all.
func (r *Registry) EnsureDefault() {
	if _, ok := r.catalogs[DefaultOrg]; ok {
		return
	}
	if len(r.order) > 0 {
		r.Add(DefaultOrg, r.catalogs[r.order[0]])
		return
	}
	r.Add(DefaultOrg, catalog.New(nil))
}

// LoadDir builds a registry from a directory of per-tenant YAML files;
// the organization key is the file name without its extension. A file
// that fails to parse fails the whole load.
func LoadDir(dir string) (*Registry, error) {
	r := NewRegistry()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.EnsureDefault()
			return r, nil
		}
		return nil, fmt.Errorf("failed to read catalog directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		c, err := catalog.LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		r.Add(strings.TrimSuffix(name, ext), c)
	}

	r.EnsureDefault()
	return r, nil
}
