// Package llm defines the port for chat-completion calls through the
// LiteLLM proxy (or any OpenAI-compatible endpoint).
package llm

import "context"

// Message is one chat message in a completion request.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest is a single chat-completion call.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Client is the port interface for language-model calls. Implementations
// must respect ctx deadlines; callers bound every call with a timeout.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
