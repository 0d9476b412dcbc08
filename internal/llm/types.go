package llm

import (
	"context"
	"fmt"
)

// Canonical message roles shared by every provider client.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is the provider-agnostic chat message. Each client encodes this
// into its own wire schema.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Response is the result of a blocking chat call.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   *Usage `json:"usage,omitempty"`
}

// Delta is the incremental payload of one stream chunk.
type Delta struct {
	Content string `json:"content,omitempty"`
	Role    string `json:"role,omitempty"`
}

// StreamChunk is one incremental unit of model output, normalized across
// providers. Chunks are delivered in upstream order.
type StreamChunk struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// ChatOptions carries per-request overrides. Unset fields fall back to the
// client's own defaults, not to a global default. Temperature and MaxTokens
// are pointers so an explicit zero is distinguishable from unset.
type ChatOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

// Client is the contract every provider client implements. ChatStream sends
// chunks on ch (closing it when the stream ends) and returns an error for
// failures that occur before or during streaming; it may suspend between
// network chunks.
type Client interface {
	Provider() string
	DefaultModel() string
	IsConfigured() bool
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)
	ChatStream(ctx context.Context, messages []Message, opts *ChatOptions, ch chan<- StreamChunk) error
}

// Error is the typed provider failure: non-success HTTP status, malformed
// response shape, or missing credential. It carries the provider name and,
// when known, the upstream HTTP status and provider-specific error type.
// There is no automatic retry; the caller decides what to surface.
type Error struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
