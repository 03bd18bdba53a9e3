package classify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/careroute/intake-router/internal/catalog"
	"github.com/careroute/intake-router/internal/domain"
)

const (
	classifyTemperature = 0
	classifyMaxTokens   = 300

	defaultBestConfidence        = 0.5
	defaultAlternativeConfidence = 0.3
)

// LLMClassifier classifies an inquiry with a single non-streaming call to
// the chat backend, constrained to the tenant's program names.
type LLMClassifier struct {
	backend domain.ChatBackend
}

// NewLLMClassifier creates an LLM classifier over a chat backend.
func NewLLMClassifier(backend domain.ChatBackend) *LLMClassifier {
	return &LLMClassifier{backend: backend}
}

// compactService is the structural service metadata shown to the model.
// Raw keyword lists are withheld to keep the prompt small; only presence
// flags are sent.
type compactService struct {
	Key         string `json:"key"`
	Phone       string `json:"phone"`
	HasContacts bool   `json:"has_contacts"`
	HasKeywords bool   `json:"has_keywords"`
}

type compactProgram struct {
	Description string           `json:"description"`
	Services    []compactService `json:"services"`
}

// replyOption mirrors the JSON the backend is instructed to return.
// Confidence is a pointer so an omitted field can be defaulted.
type replyOption struct {
	Category   string   `json:"category"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

type reply struct {
	Best         replyOption   `json:"best"`
	Alternatives []replyOption `json:"alternatives"`
}

// Classify asks the backend for a ranked classification and validates the
// reply against the catalog. It fails when the backend is unreachable,
// unauthenticated, or returns something that is not the required JSON;
// callers are expected to fall back to Guess on any error.
func (l *LLMClassifier) Classify(ctx context.Context, text string, topK int, c *catalog.Catalog) (*domain.Result, error) {
	categories := c.Names()
	if len(categories) == 0 {
		return nil, domain.ErrConfiguration("no programs loaded")
	}

	system, err := buildClassifyPrompt(c, categories)
	if err != nil {
		return nil, err
	}

	raw, err := l.backend.Complete(ctx, &domain.CompletionRequest{
		System: system,
		Messages: []domain.Message{
			{Role: "user", Content: fmt.Sprintf("Message:\n%s\nTop-K: %d", text, topK)},
		},
		Temperature: classifyTemperature,
		MaxTokens:   classifyMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var parsed reply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedReply("backend reply is not valid JSON"), err)
	}

	return l.toResult(&parsed, topK, categories, c), nil
}

func buildClassifyPrompt(c *catalog.Catalog, categories []string) (string, error) {
	compact := make(map[string]compactProgram, c.Len())
	for _, p := range c.Programs() {
		services := make([]compactService, 0, len(p.Services))
		for _, s := range p.Services {
			services = append(services, compactService{
				Key:         s.Key,
				Phone:       s.Phone,
				HasContacts: len(s.Contacts) > 0,
				HasKeywords: len(s.Keywords) > 0,
			})
		}
		compact[p.Name] = compactProgram{
			Description: p.Description,
			Services:    services,
		}
	}

	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return "", fmt.Errorf("failed to encode categories: %w", err)
	}
	programsJSON, err := json.MarshalIndent(compact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode program definitions: %w", err)
	}

	return fmt.Sprintf(`You are a routing assistant for a community services organization.
Classify the user's message into ONE of these program categories (top-level programs):
%s

Return STRICT JSON ONLY:
{
  "best": {"category": string, "confidence": number, "reasoning": string},
  "alternatives": [{"category": string, "confidence": number, "reasoning": string}]
}

Program definitions (each program may contain multiple services):
%s`, categoriesJSON, programsJSON), nil
}

// toResult maps the parsed reply through the catalog: the best category
// is kept verbatim even when unknown (its description is simply absent),
// while alternatives naming unknown programs or echoing the best
// category are dropped. Alternatives are truncated to top_k-1 after
// filtering.
func (l *LLMClassifier) toResult(parsed *reply, topK int, categories []string, c *catalog.Catalog) *domain.Result {
	bestCat := parsed.Best.Category
	if bestCat == "" {
		bestCat = categories[0]
	}

	best := domain.Option{
		Category:   bestCat,
		Confidence: defaultBestConfidence,
		Reasoning:  parsed.Best.Reasoning,
	}
	if parsed.Best.Confidence != nil {
		best.Confidence = *parsed.Best.Confidence
	}
	if p, ok := c.Program(bestCat); ok {
		best.Description = p.Description
	}

	limit := topK - 1
	if limit < 0 {
		limit = 0
	}

	alternatives := []domain.Option{}
	for _, alt := range parsed.Alternatives {
		if len(alternatives) >= limit {
			break
		}
		if alt.Category == bestCat {
			continue
		}
		p, ok := c.Program(alt.Category)
		if !ok {
			continue
		}
		opt := domain.Option{
			Category:    alt.Category,
			Confidence:  defaultAlternativeConfidence,
			Reasoning:   alt.Reasoning,
			Description: p.Description,
		}
		if alt.Confidence != nil {
			opt.Confidence = *alt.Confidence
		}
		alternatives = append(alternatives, opt)
	}

	return &domain.Result{
		Best:         best,
		Alternatives: alternatives,
		UsedFallback: false,
	}
}
