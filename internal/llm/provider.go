// Package llm abstracts chat-completion providers behind a single
// interface so the assistant can answer through OpenAI, Anthropic, or a
// local Ollama daemon without the rest of the system caring which.
package llm

import "context"

// Role identifies who produced a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest carries everything a provider needs for one
// completion call. Model overrides the provider's default when set.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse is the provider-neutral completion result. Token
// counts feed the usage accounting on chat messages and admin stats.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

// Provider is a chat-completion backend.
type Provider interface {
	// Complete sends one completion request and blocks for the answer.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name identifies the backend ("openai", "anthropic", "ollama").
	Name() string
}
