// Package chat renders a tenant's catalog into a grounding prompt and
// drives streaming conversations constrained to it. Groundedness is a
// prompt-framing contract: free text cannot be validated mid-stream, so
// the system instruction is the only enforcement point.
package chat

import (
	"fmt"
	"strings"

	"github.com/careroute/intake-router/internal/catalog"
)

const (
	// DefaultMaxServicesPerProgram caps how many services are listed per
	// program, keeping the prompt bounded regardless of catalog size.
	DefaultMaxServicesPerProgram = 4

	maxDescriptionChars = 200
	maxContactsShown    = 2
)

// RenderCatalog produces the bullet outline of programs and services that
// is embedded in the chat system prompt. Descriptions are truncated with
// an ellipsis marker, at most maxServicesPerProgram services are listed
// per program (with a trailing "• ..." when more exist), and up to two
// contacts per service are rendered.
func RenderCatalog(c *catalog.Catalog, maxServicesPerProgram int) string {
	if maxServicesPerProgram <= 0 {
		maxServicesPerProgram = DefaultMaxServicesPerProgram
	}

	var lines []string
	for _, p := range c.Programs() {
		lines = append(lines, fmt.Sprintf("- Program: %s — %s", p.Name, truncate(strings.TrimSpace(p.Description))))

		for i, s := range p.Services {
			if i >= maxServicesPerProgram {
				lines = append(lines, "    • ...")
				break
			}

			line := "    • Service: " + s.Key
			if s.Phone != "" {
				line += fmt.Sprintf(" (Phone: %s)", s.Phone)
			}
			if contacts := renderContacts(s.Contacts); contacts != "" {
				line += " — Contacts: " + contacts
			}
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}

func truncate(desc string) string {
	runes := []rune(desc)
	if len(runes) <= maxDescriptionChars {
		return desc
	}
	return string(runes[:maxDescriptionChars]) + "..."
}

func renderContacts(contacts []catalog.Contact) string {
	if len(contacts) == 0 {
		return ""
	}
	if len(contacts) > maxContactsShown {
		contacts = contacts[:maxContactsShown]
	}

	parts := make([]string, 0, len(contacts))
	for _, c := range contacts {
		part := c.Name
		if c.Email != "" {
			part += fmt.Sprintf(" <%s>", c.Email)
		}
		if c.BookingLink != "" {
			part += fmt.Sprintf(" [Book: %s]", c.BookingLink)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}
