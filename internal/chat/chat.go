// Package chat persists assistant conversations and exposes the chat
// endpoints. Answers come from the RAG pipeline; both sides of every
// exchange are stored so sessions can resume with context.
package chat

import (
	"time"

	"github.com/gkchatty/gkchatty-local/internal/rag"
)

// Session is one conversation thread owned by a user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageRole is who wrote a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one stored turn of a session. Assistant messages carry the
// sources that backed the answer and the provider token usage.
type Message struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"session_id"`
	Role         MessageRole  `json:"role"`
	Content      string       `json:"content"`
	Sources      []rag.Source `json:"sources,omitempty"`
	InputTokens  int          `json:"input_tokens,omitempty"`
	OutputTokens int          `json:"output_tokens,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// historyLimit caps how many prior turns are replayed to the model.
const historyLimit = 10

// titleLength caps the session title derived from the first question.
const titleLength = 60

// deriveTitle builds a session title from the first user message.
func deriveTitle(question string) string {
	if len(question) <= titleLength {
		return question
	}
	return question[:titleLength] + "..."
}
