// Package alerts delivers findings to webhook channels. Channels live in
// the database and are managed over the admin API; a default channel can
// also come from configuration.
package alerts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gkchatty/gkchatty-local/internal/db"
	"github.com/gkchatty/gkchatty-local/internal/findings"
)

var ErrNotFound = errors.New("alert channel not found")

// Channel is one webhook destination with a severity floor.
type Channel struct {
	Name        string            `json:"name"`
	WebhookURL  string            `json:"webhook_url"`
	MinSeverity findings.Severity `json:"min_severity"`
	Enabled     bool              `json:"enabled"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Store persists alert channels.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Upsert creates or replaces a channel by name.
func (s *Store) Upsert(ctx context.Context, ch Channel) error {
	if ch.Name == "" {
		return errors.New("channel name is required")
	}
	if ch.MinSeverity == "" {
		ch.MinSeverity = findings.SeverityWarning
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_channels (name, webhook_url, min_severity, enabled, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			webhook_url = excluded.webhook_url,
			min_severity = excluded.min_severity,
			enabled = excluded.enabled`,
		ch.Name, ch.WebhookURL, string(ch.MinSeverity), boolToInt(ch.Enabled), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting alert channel: %w", err)
	}
	return nil
}

// Get retrieves one channel by name.
func (s *Store) Get(ctx context.Context, name string) (*Channel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, webhook_url, min_severity, enabled, created_at
		FROM alert_channels WHERE name = ?`, name)
	return scanChannel(row)
}

// List returns every channel, enabled or not.
func (s *Store) List(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, webhook_url, min_severity, enabled, created_at
		FROM alert_channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing alert channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

// Delete removes a channel.
func (s *Store) Delete(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM alert_channels WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting alert channel: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChannel(sc scanner) (*Channel, error) {
	var ch Channel
	var severity string
	var enabled int
	var created string

	err := sc.Scan(&ch.Name, &ch.WebhookURL, &severity, &enabled, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning alert channel: %w", err)
	}

	ch.MinSeverity = findings.Severity(severity)
	ch.Enabled = enabled != 0
	ch.CreatedAt = parseTimestamp(created)
	return &ch, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
