package openai

// Wire types for the OpenAI-compatible chat completions API. Only the
// fields this router sends or reads are modeled.

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatCompletionRequest struct {
	Model         string                  `json:"model"`
	Messages      []chatCompletionMessage `json:"messages"`
	Temperature   *float64                `json:"temperature,omitempty"`
	MaxTokens     int                     `json:"max_tokens,omitempty"`
	Stream        bool                    `json:"stream,omitempty"`
	StreamOptions *streamOptions          `json:"stream_options,omitempty"`
}

type chatCompletionChoice struct {
	Index        int                   `json:"index"`
	Message      chatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
}

type chunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chatCompletionChunk struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type apiErrorResponse struct {
	Error apiErrorBody `json:"error"`
}
