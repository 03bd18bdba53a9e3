package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/careroute/intake-router/internal/catalog"
	"github.com/careroute/intake-router/internal/domain"
)

// streamBackend emits a scripted sequence of events.
type streamBackend struct {
	events  []domain.Event
	openErr error
	lastReq *domain.CompletionRequest
}

func (b *streamBackend) Complete(ctx context.Context, req *domain.CompletionRequest) (string, error) {
	return "", errors.New("not implemented")
}

func (b *streamBackend) Stream(ctx context.Context, req *domain.CompletionRequest) (<-chan domain.Event, error) {
	b.lastReq = req
	if b.openErr != nil {
		return nil, b.openErr
	}
	ch := make(chan domain.Event, len(b.events))
	for _, e := range b.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func collect(t *testing.T, ch <-chan string) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case fragment, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, fragment)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestStreamReply_FiltersEmptyFragments(t *testing.T) {
	backend := &streamBackend{events: []domain.Event{
		{ContentDelta: "Hello"},
		{ContentDelta: ""},
		{ContentDelta: ", welcome"},
	}}
	s := NewSession(backend, slog.Default())

	ch, err := s.StreamReply(context.Background(), []domain.Message{{Role: "user", Content: "hi"}}, catalog.New(nil))
	if err != nil {
		t.Fatalf("StreamReply() error = %v", err)
	}

	got := collect(t, ch)
	if strings.Join(got, "") != "Hello, welcome" {
		t.Errorf("fragments = %q", got)
	}
	for _, f := range got {
		if f == "" {
			t.Error("empty fragment was forwarded")
		}
	}
}

func TestStreamReply_MidStreamErrorEndsEarly(t *testing.T) {
	backend := &streamBackend{events: []domain.Event{
		{ContentDelta: "partial"},
		{Err: errors.New("connection reset")},
		{ContentDelta: "never delivered"},
	}}
	s := NewSession(backend, slog.Default())

	ch, err := s.StreamReply(context.Background(), []domain.Message{{Role: "user", Content: "hi"}}, catalog.New(nil))
	if err != nil {
		t.Fatalf("StreamReply() error = %v", err)
	}

	got := collect(t, ch)
	if len(got) != 1 || got[0] != "partial" {
		t.Errorf("fragments = %q, want only the pre-error fragment", got)
	}
}

func TestStreamReply_OpenErrorSurfaces(t *testing.T) {
	backend := &streamBackend{openErr: domain.ErrBackendUnavailable("down")}
	s := NewSession(backend, slog.Default())

	_, err := s.StreamReply(context.Background(), []domain.Message{{Role: "user", Content: "hi"}}, catalog.New(nil))
	if err == nil {
		t.Fatal("StreamReply() error = nil, want open failure")
	}
}

func TestStreamReply_SystemPromptGroundsCatalog(t *testing.T) {
	backend := &streamBackend{events: []domain.Event{{ContentDelta: "ok"}}}
	s := NewSession(backend, slog.Default())

	c := catalog.New([]catalog.Program{
		{Name: "Housing Services", Description: "Help with rent"},
	})

	ch, err := s.StreamReply(context.Background(), []domain.Message{{Role: "user", Content: "hi"}}, c)
	if err != nil {
		t.Fatalf("StreamReply() error = %v", err)
	}
	collect(t, ch)

	if !strings.Contains(backend.lastReq.System, "Housing Services") {
		t.Error("system prompt missing catalog program")
	}
	if !strings.Contains(backend.lastReq.System, "Do NOT invent names") {
		t.Error("system prompt missing grounding rule")
	}
	if backend.lastReq.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", backend.lastReq.Temperature)
	}
}
