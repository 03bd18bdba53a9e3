package classify

import (
	"context"
	"log/slog"

	"github.com/careroute/intake-router/internal/domain"
	"github.com/careroute/intake-router/internal/tenant"
)

// Classifier ties the tenant registry, the LLM classifier, and the
// keyword scorer into one operation with defined fallback semantics.
type Classifier struct {
	registry *tenant.Registry
	llm      *LLMClassifier
	logger   *slog.Logger
}

// New creates a classifier. The backend may fail at call time (missing
// credential, transport errors); those failures degrade to the keyword
// scorer and are never surfaced to the caller.
func New(registry *tenant.Registry, backend domain.ChatBackend, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		registry: registry,
		llm:      NewLLMClassifier(backend),
		logger:   logger,
	}
}

// Classify resolves the organization's catalog (unknown keys alias to
// "default"), attempts the LLM path, and falls back to keyword scoring on
// any backend error. It never returns an error-shaped result: an empty
// catalog short-circuits to "Unknown" without touching the backend.
func (c *Classifier) Classify(ctx context.Context, text string, topK int, org string) *domain.Result {
	cat := c.registry.Resolve(org)

	if cat.Empty() {
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

	result, err := c.llm.Classify(ctx, text, topK, cat)
	if err != nil {
		c.logger.Warn("backend classification failed, using keyword fallback",
			slog.String("org", org),
			slog.String("error", err.Error()),
		)
		return Guess(text, topK, cat)
	}

	return result
}
