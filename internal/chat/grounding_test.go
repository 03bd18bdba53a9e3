package chat

import (
	"strings"
	"testing"

	"github.com/careroute/intake-router/internal/catalog"
)

func TestRenderCatalog(t *testing.T) {
	c := catalog.New([]catalog.Program{
		{
			Name:        "Housing Services",
			Description: "Help with rent and housing stability",
			Services: []catalog.Service{
				{
					Key:   "Rental Assistance",
					Phone: "555-0100",
					Contacts: []catalog.Contact{
						{Name: "Dana Reyes", Email: "dana@example.org", BookingLink: "https://cal.example.org/dana"},
					},
				},
			},
		},
	})

	out := RenderCatalog(c, 0)

	for _, want := range []string{
		"- Program: Housing Services — Help with rent and housing stability",
		"    • Service: Rental Assistance (Phone: 555-0100)",
		"Dana Reyes <dana@example.org> [Book: https://cal.example.org/dana]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered catalog missing %q:\n%s", want, out)
		}
	}
}

func TestRenderCatalog_TruncatesLongDescriptions(t *testing.T) {
	long := strings.Repeat("x", 250)
	c := catalog.New([]catalog.Program{{Name: "Verbose", Description: long}})

	out := RenderCatalog(c, 0)

	if strings.Contains(out, long) {
		t.Error("long description was not truncated")
	}
	if !strings.Contains(out, strings.Repeat("x", 200)+"...") {
		t.Error("truncated description missing ellipsis marker")
	}
}

func TestRenderCatalog_CapsServicesPerProgram(t *testing.T) {
	c := catalog.New([]catalog.Program{
		{
			Name: "Mobility",
			Services: []catalog.Service{
				{Key: "A"}, {Key: "B"}, {Key: "C"},
			},
		},
	})

	out := RenderCatalog(c, 2)

	if !strings.Contains(out, "Service: A") || !strings.Contains(out, "Service: B") {
		t.Errorf("first services missing:\n%s", out)
	}
	if strings.Contains(out, "Service: C") {
		t.Errorf("service past the cap was rendered:\n%s", out)
	}
	if !strings.Contains(out, "    • ...") {
		t.Errorf("overflow marker missing:\n%s", out)
	}
}

func TestRenderCatalog_LimitsContacts(t *testing.T) {
	c := catalog.New([]catalog.Program{
		{
			Name: "Housing",
			Services: []catalog.Service{
				{
					Key: "Rental Assistance",
					Contacts: []catalog.Contact{
						{Name: "One"}, {Name: "Two"}, {Name: "Three"},
					},
				},
			},
		},
	})

	out := RenderCatalog(c, 0)

	if !strings.Contains(out, "One; Two") {
		t.Errorf("first two contacts missing:\n%s", out)
	}
	if strings.Contains(out, "Three") {
		t.Errorf("third contact should not be rendered:\n%s", out)
	}
}
