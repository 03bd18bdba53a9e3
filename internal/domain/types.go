// Package domain provides the canonical types shared across the intake
// router: classification results, chat messages, and the abstract
// chat-completion backend the classifier and conversation layer depend on.
package domain

import "context"

// Option is a single classification candidate.
type Option struct {
	// Category is a program name from the tenant's catalog, or "Unknown"
	// when the catalog is empty.
	Category string `json:"category"`

	// Confidence is in [0, 1].
	Confidence float64 `json:"confidence"`

	Reasoning   string `json:"reasoning,omitempty"`
	Description string `json:"description,omitempty"`
}

// Result is the outcome of classifying one inquiry.
type Result struct {
	Best Option `json:"best"`

	// Alternatives holds at most top_k-1 further candidates, never the
	// best category and never a category absent from the tenant catalog.
	Alternatives []Option `json:"alternatives"`

	// UsedFallback reports whether the deterministic keyword scorer
	// produced the result instead of the generative backend.
	UsedFallback bool `json:"used_fallback"`
}

// Message is one turn in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes a single chat-completion call.
type CompletionRequest struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Event is one element of a streaming completion. Exactly one of
// ContentDelta and Err is meaningful; an Err event is terminal.
type Event struct {
	ContentDelta string
	Err          error
}

// ChatBackend is the text-generation capability. Complete performs one
// blocking round trip and returns the raw assistant reply. Stream opens a
// streaming completion; the returned channel is closed when the stream
// ends, including early termination on timeout or transport error.
type ChatBackend interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
	Stream(ctx context.Context, req *CompletionRequest) (<-chan Event, error)
}
