// Package openai implements the chat-completion backend against any
// OpenAI-compatible endpoint. The default configuration targets the
// DeepSeek API, which speaks the same wire protocol.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/careroute/intake-router/internal/domain"
)

const (
	// DefaultBaseURL is the DeepSeek OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.deepseek.com"

	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "deepseek-chat"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithModel sets the chat model.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is an HTTP client for the chat completions API. It implements
// domain.ChatBackend.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ domain.ChatBackend = (*Client)(nil)

// NewClient creates a new chat completions client. An empty API key is
// permitted at construction time; calls will fail with an authentication
// error, which the classifier treats as a fallback trigger.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a blocking chat completion request and returns the raw
// assistant reply.
func (c *Client) Complete(ctx context.Context, req *domain.CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", domain.ErrAuthentication("no backend credential configured")
	}

	resp, err := c.do(ctx, c.toAPIRequest(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable("failed to read response"), err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, respBody)
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedReply("failed to unmarshal response"), err)
	}
	if len(result.Choices) == 0 {
		return "", domain.ErrMalformedReply("backend returned no choices")
	}

	return result.Choices[0].Message.Content, nil
}

// Stream opens a streaming chat completion and returns a channel of
// events. The channel is closed when the stream ends; a read or decode
// failure is delivered as a terminal error event.
func (c *Client) Stream(ctx context.Context, req *domain.CompletionRequest) (<-chan domain.Event, error) {
	if c.apiKey == "" {
		return nil, domain.ErrAuthentication("no backend credential configured")
	}

	apiReq := c.toAPIRequest(req, true)
	apiReq.StreamOptions = &streamOptions{IncludeUsage: false}

	resp, err := c.do(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, statusError(resp.StatusCode, respBody)
	}

	out := make(chan domain.Event)
	go c.streamReader(ctx, resp.Body, out)
	return out, nil
}

func (c *Client) do(ctx context.Context, apiReq *chatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("User-Agent", "intake-router/1.0")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable("request failed"), err)
	}
	return resp, nil
}

func (c *Client) toAPIRequest(req *domain.CompletionRequest, stream bool) *chatCompletionRequest {
	messages := make([]chatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatCompletionMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	// Temperature is always sent: classification relies on temperature 0
	// and omitting the field would fall back to the provider default.
	temp := req.Temperature
	return &chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: &temp,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

// streamReader decodes SSE lines into events. Sends race against
// ctx.Done() so a consumer that abandons the channel releases the reader
// instead of blocking it forever on an unread send.
func (c *Client) streamReader(ctx context.Context, body io.ReadCloser, out chan<- domain.Event) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	// Increase buffer size for potentially large chunks
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	send := func(event domain.Event) bool {
		select {
		case out <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			send(domain.Event{Err: fmt.Errorf("failed to unmarshal chunk: %w", err)})
			return
		}

		if len(chunk.Choices) > 0 {
			if !send(domain.Event{ContentDelta: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		send(domain.Event{Err: fmt.Errorf("stream read error: %w", err)})
	}
}

func statusError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrAuthentication(message).WithStatusCode(status)
	default:
		return domain.ErrBackendUnavailable(fmt.Sprintf("API error (status %d): %s", status, message)).WithStatusCode(status)
	}
}
