// Package llm defines the provider abstraction for chat completion and
// embedding backends, plus the factory, retry, and rate-limit wrappers
// layered on top of it.
package llm

import "context"

// Provider is a chat completion and embedding backend.
type Provider interface {
	// Complete sends a prompt and returns a completion.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Embed returns one embedding vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the backend, e.g. "anthropic".
	Name() string
}

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt is the full input to a completion call. The system prompt is kept
// separate because providers encode it differently.
type Prompt struct {
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
}

// RequestOptions tunes a single completion call. Nil fields fall back to
// provider defaults.
type RequestOptions struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	StopSeqs    []string
}

// IntPtr is a convenience helper for building RequestOptions literals.
func IntPtr(v int) *int { return &v }

// Float64Ptr is a convenience helper for building RequestOptions literals.
func Float64Ptr(v float64) *float64 { return &v }

// Response is a completion result with token accounting.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}
