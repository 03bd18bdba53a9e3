// Package storage defines the interaction audit store: every
// classification call is recorded for later review. Recording is
// best-effort and must never fail a request.
package storage

import (
	"context"
	"time"
)

// Interaction is one recorded classification call.
type Interaction struct {
	ID           string        `json:"id"`
	Tenant       string        `json:"tenant"`
	Text         string        `json:"text"`
	BestCategory string        `json:"best_category"`
	Confidence   float64       `json:"confidence"`
	UsedFallback bool          `json:"used_fallback"`
	Duration     time.Duration `json:"duration_ns"`
	CreatedAt    time.Time     `json:"created_at"`
}

// InteractionStore persists classification interactions.
type InteractionStore interface {
	RecordInteraction(ctx context.Context, in *Interaction) error
	RecentInteractions(ctx context.Context, tenant string, limit int) ([]*Interaction, error)
	Close() error
}

// NopStore discards everything; used when storage is disabled.
type NopStore struct{}

var _ InteractionStore = (*NopStore)(nil)

func (*NopStore) RecordInteraction(context.Context, *Interaction) error {
	return nil
}

func (*NopStore) RecentInteractions(context.Context, string, int) ([]*Interaction, error) {
	return nil, nil
}

func (*NopStore) Close() error {
	return nil
}
