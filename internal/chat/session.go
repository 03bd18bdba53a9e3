package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/careroute/intake-router/internal/catalog"
	"github.com/careroute/intake-router/internal/domain"
	"github.com/careroute/intake-router/internal/tokens"
)

const (
	chatTemperature = 0.3
	chatMaxTokens   = 300
)

// Session drives streaming conversations grounded to a tenant catalog.
type Session struct {
	backend domain.ChatBackend
	logger  *slog.Logger
}

// NewSession creates a chat session over a chat backend.
func NewSession(backend domain.ChatBackend, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{backend: backend, logger: logger}
}

// StreamReply opens a streaming completion with the grounding system
// prompt prepended to the caller's message history and returns a channel
// of non-empty text fragments. The channel closes when the backend stream
// ends; a mid-stream error ends the sequence early rather than surfacing
// as a distinct failure, so consumers must treat a short stream as
// "ended early", not corruption.
func (s *Session) StreamReply(ctx context.Context, history []domain.Message, c *catalog.Catalog) (<-chan string, error) {
	system := buildSystemPrompt(c)
	s.logger.Debug("opening grounded chat stream",
		slog.Int("history_len", len(history)),
		slog.Int("system_prompt_tokens", tokens.Estimate(system)),
	)

	events, err := s.backend.Stream(ctx, &domain.CompletionRequest{
		System:      system,
		Messages:    history,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for event := range events {
			if event.Err != nil {
				s.logger.Warn("chat stream ended early", slog.String("error", event.Err.Error()))
				return
			}
			if event.ContentDelta == "" {
				continue
			}
			select {
			case out <- event.ContentDelta:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func buildSystemPrompt(c *catalog.Catalog) string {
	return fmt.Sprintf(`You are a warm and helpful intake navigator at a community services organization.

Your job:
1. Understand the user's need.
2. Identify the MOST relevant program.
3. IF POSSIBLE, recommend a SPECIFIC SERVICE under that program.
4. When recommending a service, ALWAYS include any available:
- Contact person name(s)
- Email(s)
- Phone number(s)

Rules:
- Only mention programs and services that appear in the list below. Do NOT invent names.
- Keep responses short (2-4 sentences).
- If the exact service is unclear, ask one clarifying question before recommending.
- If a service has no direct contact, then share:
  • Another service under the same program that DOES have a contact
  • OR the program's main phone number
- Do NOT output JSON. Respond conversationally and kindly.

Available programs & services:
%s`, RenderCatalog(c, DefaultMaxServicesPerProgram))
}
