package catalog

import (
	"fmt"
	"sort"

	yamlparser "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/careroute/intake-router/internal/domain"
)

// LoadFile reads one tenant catalog document from a YAML file. Two
// schemas are accepted: the canonical nested form with a top-level
// "programs" list, and the legacy flat form keyed directly by category
// name, which is normalized into the nested model during load.
//
// A document that fails to parse as YAML is a hard failure; individual
// malformed entries inside a well-formed document are skipped.
func LoadFile(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yamlparser.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration("failed to parse catalog document "+path), err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Catalog, error) {
	if k.Exists("programs") {
		return fromNested(k)
	}
	return fromLegacy(k)
}

func fromNested(k *koanf.Koanf) (*Catalog, error) {
	// Mirror of the schema contract: a missing or non-list "programs"
	// field means an empty catalog, not an error.
	if _, ok := k.Get("programs").([]interface{}); !ok {
		return New(nil), nil
	}

	var programs []Program
	if err := k.Unmarshal("programs", &programs); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration("failed to decode programs"), err)
	}

	return New(programs), nil
}

// legacyEntry is the flat pre-programs schema: a top-level mapping of
// category name to description and keywords, without services.
type legacyEntry struct {
	Description string   `koanf:"description"`
	Keywords    []string `koanf:"keywords"`
}

func fromLegacy(k *koanf.Koanf) (*Catalog, error) {
	root := k.Raw()

	// YAML mappings lose their document order through the generic map
	// representation, so legacy catalogs load in sorted name order.
	names := make([]string, 0, len(root))
	for name := range root {
		names = append(names, name)
	}
	sort.Strings(names)

	programs := make([]Program, 0, len(names))
	for _, name := range names {
		if _, ok := root[name].(map[string]interface{}); !ok {
			continue
		}

		var entry legacyEntry
		if err := k.Unmarshal(name, &entry); err != nil {
			continue
		}

		programs = append(programs, Program{
			Name:        name,
			Description: entry.Description,
			Keywords:    entry.Keywords,
		})
	}

	return New(programs), nil
}
