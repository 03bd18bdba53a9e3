// Package classify routes free-text inquiries to a program from a
// tenant's catalog. The primary path is a single constrained call to the
// chat backend; the fallback is a deterministic keyword scorer.
package classify

import (
	"sort"
	"strings"

	"github.com/careroute/intake-router/internal/catalog"
	"github.com/careroute/intake-router/internal/domain"
)

// Keyword scorer confidence levels, matched to the backend-free routing
// contract: 0.6 for a scored match, 0.4 for ranked alternatives, 0.35
// for the weak-match default.
const (
	keywordMatchConfidence = 0.6
	partialMatchConfidence = 0.4
	weakMatchConfidence    = 0.35
)

// Score is one program's keyword hit count for an input.
type Score struct {
	Program string
	Hits    int
}

// ScoreKeywords ranks programs by the number of distinct catalog keywords
// contained in the lowercased input text. Matching is case-insensitive
// and substring-based; each keyword counts at most once. Ties keep the
// catalog's load order.
func ScoreKeywords(text string, c *catalog.Catalog) []Score {
	lowered := strings.ToLower(text)

	scores := make([]Score, 0, c.Len())
	for _, p := range c.Programs() {
		hits := 0
		for _, kw := range p.Keywords {
			if kw != "" && strings.Contains(lowered, kw) {
				hits++
			}
		}
		scores = append(scores, Score{Program: p.Name, Hits: hits})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Hits > scores[j].Hits
	})
	return scores
}

// Guess classifies by keyword scoring alone. It always reports
// used_fallback and never fails: an empty catalog yields "Unknown", and
// an input matching nothing yields the first-loaded program as a weak
// match with no alternatives.
func Guess(text string, topK int, c *catalog.Catalog) *domain.Result {
	if c.Empty() {
		return &domain.Result{
			Best: domain.Option{
				Category:   "Unknown",
				Confidence: 0,
				Reasoning:  "No programs loaded",
			},
			Alternatives: []domain.Option{},
			UsedFallback: true,
		}
	}

	scores := ScoreKeywords(text, c)

	if scores[0].Hits == 0 {
		first := c.Programs()[0]
		return &domain.Result{
			Best: domain.Option{
				Category:    first.Name,
				Confidence:  weakMatchConfidence,
				Reasoning:   "Weak match",
				Description: first.Description,
			},
			Alternatives: []domain.Option{},
			UsedFallback: true,
		}
	}

	best, _ := c.Program(scores[0].Program)
	result := &domain.Result{
		Best: domain.Option{
			Category:    best.Name,
			Confidence:  keywordMatchConfidence,
			Reasoning:   "Keyword match",
			Description: best.Description,
		},
		Alternatives: []domain.Option{},
		UsedFallback: true,
	}

	if topK < 1 {
		topK = 1
	}
	for _, s := range scores[1:] {
		if len(result.Alternatives) >= topK-1 {
			break
		}
		p, ok := c.Program(s.Program)
		if !ok {
			continue
		}
		result.Alternatives = append(result.Alternatives, domain.Option{
			Category:    p.Name,
			Confidence:  partialMatchConfidence,
			Reasoning:   "Partial keyword match",
			Description: p.Description,
		})
	}

	return result
}
