// Package catalog models one tenant's offering: programs, the services
// they own, and contact records. A Catalog is built once from
// configuration and is immutable afterwards, so it can be shared across
// request handlers without locking.
package catalog

import "strings"

// Contact is opaque passthrough data rendered for display only; the
// classifier never interprets it.
type Contact struct {
	Name        string `koanf:"name" json:"name"`
	Email       string `koanf:"email" json:"email,omitempty"`
	BookingLink string `koanf:"booking_link" json:"booking_link,omitempty"`
}

// Service is a named offering within a program.
type Service struct {
	Key         string    `koanf:"key" json:"key"`
	Description string    `koanf:"description" json:"description,omitempty"`
	Phone       string    `koanf:"phone" json:"phone,omitempty"`
	Keywords    []string  `koanf:"keywords" json:"keywords,omitempty"`
	Contacts    []Contact `koanf:"contacts" json:"contacts,omitempty"`
}

// Program is a top-level classification label with its owned services.
type Program struct {
	Name        string    `koanf:"name" json:"name"`
	Description string    `koanf:"description" json:"description,omitempty"`
	Keywords    []string  `koanf:"keywords" json:"keywords,omitempty"`
	Services    []Service `koanf:"services" json:"services,omitempty"`
}

// Catalog holds a tenant's programs in load order. After New, every
// program has a non-empty name, every service a non-empty key, and
// keyword sets are lowercased, deduplicated, and aggregated.
type Catalog struct {
	programs []*Program
	byName   map[string]*Program
}

// New builds a catalog from raw program definitions, applying the load
// rules: programs with blank names and services with blank keys are
// skipped, keywords are normalized to lower case, each service gains
// terms derived from its key, and each program's keyword set is the
// union of its own keywords and every owned service's.
func New(programs []Program) *Catalog {
	c := &Catalog{byName: make(map[string]*Program)}

	for _, p := range programs {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}

		prog := &Program{
			Name:        name,
			Description: p.Description,
		}

		aggregate := newKeywordSet()
		aggregate.addAll(p.Keywords)

		for _, s := range p.Services {
			key := strings.TrimSpace(s.Key)
			if key == "" {
				continue
			}

			svcKeywords := newKeywordSet()
			svcKeywords.addAll(s.Keywords)
			svcKeywords.addAll(deriveKeyTerms(key))
			aggregate.addAll(svcKeywords.values())

			prog.Services = append(prog.Services, Service{
				Key:         key,
				Description: s.Description,
				Phone:       s.Phone,
				Keywords:    svcKeywords.values(),
				Contacts:    append([]Contact(nil), s.Contacts...),
			})
		}

		prog.Keywords = aggregate.values()
		c.programs = append(c.programs, prog)
		c.byName[name] = prog
	}

	return c
}

// Programs returns the programs in load order.
func (c *Catalog) Programs() []*Program {
	return c.programs
}

// Program looks up a program by name.
func (c *Catalog) Program(name string) (*Program, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// Names returns the program names in load order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.programs))
	for i, p := range c.programs {
		names[i] = p.Name
	}
	return names
}

// Len returns the number of programs.
func (c *Catalog) Len() int {
	return len(c.programs)
}

// Empty reports whether the catalog has no programs.
func (c *Catalog) Empty() bool {
	return len(c.programs) == 0
}

var keyTermReplacer = strings.NewReplacer("/", " ", "&", " ")

// deriveKeyTerms splits a service key on "/", "&", and whitespace and
// lowercases each token, so "Whill Sales" yields {"whill", "sales"}.
func deriveKeyTerms(key string) []string {
	var terms []string
	for _, tok := range strings.Fields(keyTermReplacer.Replace(key)) {
		terms = append(terms, strings.ToLower(tok))
	}
	return terms
}

// keywordSet collapses duplicates while preserving insertion order.
type keywordSet struct {
	seen  map[string]struct{}
	order []string
}

func newKeywordSet() *keywordSet {
	return &keywordSet{seen: make(map[string]struct{})}
}

func (s *keywordSet) addAll(keywords []string) {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := s.seen[kw]; ok {
			continue
		}
		s.seen[kw] = struct{}{}
		s.order = append(s.order, kw)
	}
}

func (s *keywordSet) values() []string {
	return s.order
}
