package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/careroute/intake-router/internal/domain"
	"github.com/careroute/intake-router/internal/testutil"
)

func TestComplete(t *testing.T) {
	var gotReq chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}

		json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []chatCompletionChoice{
				{Message: chatCompletionMessage{Role: "assistant", Content: "hello there"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithModel("test-model"))

	got, err := c.Complete(context.Background(), &domain.CompletionRequest{
		System:      "be brief",
		Messages:    []domain.Message{{Role: "user", Content: "hi"}},
		Temperature: 0,
		MaxTokens:   100,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "hello there" {
		t.Errorf("Complete() = %q", got)
	}

	if gotReq.Model != "test-model" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("messages = %+v, want system prompt first", gotReq.Messages)
	}
	// Temperature 0 must be transmitted, not omitted.
	if gotReq.Temperature == nil || *gotReq.Temperature != 0 {
		t.Errorf("temperature = %v, want explicit 0", gotReq.Temperature)
	}
}

func TestComplete_EmptyAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request was sent without a credential")
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))

	_, err := c.Complete(context.Background(), &domain.CompletionRequest{
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	apiErr, ok := domain.AsAPIError(err)
	if !ok || apiErr.Type != domain.ErrorTypeAuthentication {
		t.Errorf("error = %v, want authentication", err)
	}
}

func TestComplete_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL))

	_, err := c.Complete(context.Background(), &domain.CompletionRequest{
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	apiErr, ok := domain.AsAPIError(err)
	if !ok || apiErr.Type != domain.ErrorTypeAuthentication {
		t.Fatalf("error = %v, want authentication", err)
	}
	if !strings.Contains(apiErr.Message, "invalid api key") {
		t.Errorf("message = %q, want backend error message", apiErr.Message)
	}
}

func TestComplete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.Complete(context.Background(), &domain.CompletionRequest{
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	apiErr, ok := domain.AsAPIError(err)
	if !ok || apiErr.Type != domain.ErrorTypeBackendUnavailable {
		t.Errorf("error = %v, want backend_unavailable", err)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.Complete(context.Background(), &domain.CompletionRequest{
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	apiErr, ok := domain.AsAPIError(err)
	if !ok || apiErr.Type != domain.ErrorTypeMalformedReply {
		t.Errorf("error = %v, want malformed_reply", err)
	}
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	events, err := c.Stream(context.Background(), &domain.CompletionRequest{
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var content string
	for event := range events {
		if event.Err != nil {
			t.Fatalf("stream event error: %v", event.Err)
		}
		content += event.ContentDelta
	}
	if content != "Hello" {
		t.Errorf("streamed content = %q, want Hello", content)
	}
}

func TestStream_CancelReleasesReader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 100; i++ {
			io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	before := runtime.NumGoroutine()

	// A consumer that pulls one fragment, cancels, and walks away must
	// not strand the reader goroutine on its next send.
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		events, err := c.Stream(ctx, &domain.CompletionRequest{
			Messages: []domain.Message{{Role: "user", Content: "hi"}},
		})
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		<-events
		cancel()
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before+3 {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines = %d (baseline %d): stream readers leaked after cancel", runtime.NumGoroutine(), before)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestStream_BadChunkIsTerminalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {not json\n\n")
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	events, err := c.Stream(context.Background(), &domain.CompletionRequest{
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var sawErr bool
	for event := range events {
		if event.Err != nil {
			sawErr = true
		}
	}
	if !sawErr {
		t.Error("malformed chunk did not produce an error event")
	}
}

func TestComplete_VCR(t *testing.T) {
	if os.Getenv("DEEPSEEK_API_KEY") == "" && os.Getenv("VCR_MODE") == "record" {
		t.Skip("Skipping test: DEEPSEEK_API_KEY not set")
	}

	recorder, cleanup := testutil.NewVCRRecorder(t, "deepseek_complete")
	defer cleanup()

	apiKey := os.Getenv("DEEPSEEK_API_KEY")
	if apiKey == "" {
		apiKey = "test-key"
	}

	c := NewClient(apiKey, WithHTTPClient(testutil.VCRHTTPClient(recorder)))

	got, err := c.Complete(context.Background(), &domain.CompletionRequest{
		System:   "Reply with a short greeting.",
		Messages: []domain.Message{{Role: "user", Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got == "" {
		t.Error("expected content in response")
	}
}
