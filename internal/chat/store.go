package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gkchatty/gkchatty-local/internal/db"
)

var ErrNotFound = errors.New("session not found")

// Store persists chat sessions and messages.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateSession starts a new conversation for a user.
func (s *Store) CreateSession(ctx context.Context, userID, title string) (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	sess.UpdatedAt = sess.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Title, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return sess, nil
}

// GetSession retrieves one session by ID. Callers enforce ownership.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions WHERE id = ?`, id)

	var sess Session
	var created, updated string
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	sess.CreatedAt = parseTimestamp(created)
	sess.UpdatedAt = parseTimestamp(updated)
	return &sess, nil
}

// ListSessions returns a user's sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions WHERE user_id = ?
		ORDER BY updated_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var created, updated string
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.CreatedAt = parseTimestamp(created)
		sess.UpdatedAt = parseTimestamp(updated)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// AppendMessage stores one message and bumps the session's activity time.
func (s *Store) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = time.Now().UTC()

	sources := []byte("[]")
	if len(msg.Sources) > 0 {
		var err error
		sources, err = json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("marshaling sources: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, sources,
			input_tokens, output_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, string(sources),
		msg.InputTokens, msg.OutputTokens, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`,
		msg.CreatedAt, msg.SessionID)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// ListMessages returns a session's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, sources, input_tokens, output_tokens, created_at
		FROM chat_messages WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var role, sources, created string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &sources,
			&msg.InputTokens, &msg.OutputTokens, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = MessageRole(role)
		msg.CreatedAt = parseTimestamp(created)
		if sources != "" && sources != "[]" {
			if err := json.Unmarshal([]byte(sources), &msg.Sources); err != nil {
				return nil, fmt.Errorf("unmarshaling sources: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CountSessions returns the total session count across all users.
func (s *Store) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

// TokenTotals sums stored token usage across all messages, for the
// admin stats endpoint's spend estimate.
func (s *Store) TokenTotals(ctx context.Context) (input, output int, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM chat_messages`)
	if err := row.Scan(&input, &output); err != nil {
		return 0, 0, fmt.Errorf("summing token usage: %w", err)
	}
	return input, output, nil
}

// parseTimestamp handles both SQLite's datetime('now') format and the
// RFC3339 strings the Go driver writes.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
