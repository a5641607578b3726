package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gkchatty/gkchatty-local/internal/db"
	"github.com/gkchatty/gkchatty-local/internal/logger"
)

// Store provides CRUD operations for audit entries.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts a new audit entry. If entry.ID is empty a UUID is generated;
// the timestamp is assigned by the database.
func (s *Store) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	var userID, ip sql.NullString
	if entry.UserID != "" {
		userID = sql.NullString{String: entry.UserID, Valid: true}
	}
	if entry.IP != "" {
		ip = sql.NullString{String: entry.IP, Valid: true}
	}

	success := 0
	if entry.Success {
		success = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, action, username, user_id, success, ip, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		string(entry.Action),
		entry.Username,
		userID,
		success,
		ip,
		entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// Record logs an entry and reports failures to the context logger instead of
// returning them, so an audit problem never fails the request being audited.
func Record(ctx context.Context, s *Store, entry Entry) {
	if s == nil {
		return
	}
	if err := s.Log(ctx, entry); err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("action", string(entry.Action)).
			Msg("audit write failed")
	}
}

// GetByID retrieves a single audit entry.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, action, username, user_id, success, ip, detail
		FROM audit_entries WHERE id = ?`, id)

	return scanEntry(row)
}

// QueryFilter controls which audit entries are returned by Query.
type QueryFilter struct {
	Action   Action
	Username string
	Success  *bool
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}

// Query returns audit entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Username != "" {
		clauses = append(clauses, "username = ?")
		args = append(args, filter.Username)
	}
	if filter.Success != nil {
		success := 0
		if *filter.Success {
			success = 1
		}
		clauses = append(clauses, "success = ?")
		args = append(args, success)
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, filter.Until.UTC().Format(time.DateTime))
	}

	query := "SELECT id, timestamp, action, username, user_id, success, ip, detail FROM audit_entries"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Count returns the total number of audit entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit entries: %w", err)
	}
	return n, nil
}

// CountByAction returns entry counts grouped by action.
func (s *Store) CountByAction(ctx context.Context) (map[Action]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT action, COUNT(*) FROM audit_entries GROUP BY action")
	if err != nil {
		return nil, fmt.Errorf("counting audit entries by action: %w", err)
	}
	defer rows.Close()

	counts := make(map[Action]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("scanning audit count: %w", err)
		}
		counts[Action(action)] = n
	}
	return counts, rows.Err()
}

// DeleteBefore removes all audit entries older than the given time.
// Returns the number of deleted rows.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_entries WHERE timestamp < ?",
		before.UTC().Format(time.DateTime),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old audit entries: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Entry, error) {
	var (
		e          Entry
		ts, action string
		success    int
		userID, ip sql.NullString
	)

	err := sc.Scan(&e.ID, &ts, &action, &e.Username, &userID, &success, &ip, &e.Detail)
	if err != nil {
		return nil, err
	}

	e.Action = Action(action)
	e.Success = success != 0

	if t, parseErr := time.Parse(time.DateTime, ts); parseErr == nil {
		e.Timestamp = t
	} else if t, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
		e.Timestamp = t
	}

	if userID.Valid {
		e.UserID = userID.String
	}
	if ip.Valid {
		e.IP = ip.String
	}

	return &e, nil
}

func scanEntry(row *sql.Row) (*Entry, error) {
	return scanInto(row)
}

func scanRows(rows *sql.Rows) (*Entry, error) {
	return scanInto(rows)
}
