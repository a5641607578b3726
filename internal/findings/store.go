package findings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gkchatty/gkchatty-local/internal/db"
)

var ErrNotFound = errors.New("finding not found")

// Store persists findings.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create records a new finding.
func (s *Store) Create(ctx context.Context, f Finding) (*Finding, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.Severity == "" {
		f.Severity = SeverityWarning
	}
	if f.Status == "" {
		f.Status = StatusOpen
	}
	if f.Source == "" {
		f.Source = SourceDiag
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO findings (id, check_name, severity, title, detail, status, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.CheckName, string(f.Severity), f.Title, f.Detail,
		string(f.Status), string(f.Source), f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting finding: %w", err)
	}
	return &f, nil
}

// File records a finding unless an identical open one already exists, so
// a failing check that runs every hour does not pile up duplicates.
func (s *Store) File(ctx context.Context, f Finding) (*Finding, error) {
	row := s.db.QueryRowContext(ctx, findingColumns+`
		FROM findings
		WHERE check_name = ? AND title = ? AND status != ?
		ORDER BY created_at DESC LIMIT 1`,
		f.CheckName, f.Title, string(StatusResolved))

	existing, err := scanFinding(row)
	if err == nil {
		// Refresh the detail; the condition may have drifted.
		_, err = s.db.ExecContext(ctx,
			`UPDATE findings SET detail = ?, severity = ?, updated_at = ? WHERE id = ?`,
			f.Detail, string(f.Severity), time.Now().UTC(), existing.ID)
		if err != nil {
			return nil, fmt.Errorf("refreshing finding: %w", err)
		}
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.Create(ctx, f)
}

// GetByID retrieves one finding.
func (s *Store) GetByID(ctx context.Context, id string) (*Finding, error) {
	row := s.db.QueryRowContext(ctx, findingColumns+` FROM findings WHERE id = ?`, id)
	return scanFinding(row)
}

// List returns findings matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Finding, error) {
	query := findingColumns + ` FROM findings WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if filter.CheckName != "" {
		query += " AND check_name = ?"
		args = append(args, filter.CheckName)
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, string(filter.Source))
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing findings: %w", err)
	}
	defer rows.Close()

	var found []Finding
	for rows.Next() {
		f, err := scanFindingRows(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, *f)
	}
	return found, rows.Err()
}

// SetStatus moves a finding through its lifecycle. The resolver is
// recorded when the new status is resolved.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, resolvedBy string) error {
	now := time.Now().UTC()

	var result sql.Result
	var err error
	if status == StatusResolved {
		result, err = s.db.ExecContext(ctx,
			`UPDATE findings SET status = ?, resolved_by = ?, resolved_at = ?, updated_at = ? WHERE id = ?`,
			string(status), resolvedBy, now, now, id)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE findings SET status = ?, resolved_by = NULL, resolved_at = NULL, updated_at = ? WHERE id = ?`,
			string(status), now, id)
	}
	if err != nil {
		return fmt.Errorf("updating finding status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOpen returns how many findings are not yet resolved.
func (s *Store) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM findings WHERE status != ?`, string(StatusResolved)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting open findings: %w", err)
	}
	return n, nil
}

const findingColumns = `SELECT id, check_name, severity, title, detail, status, source,
	resolved_by, resolved_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Finding, error) {
	var f Finding
	var severity, status, source string
	var resolvedBy sql.NullString
	var resolvedAt sql.NullString
	var created, updated string

	err := sc.Scan(&f.ID, &f.CheckName, &severity, &f.Title, &f.Detail, &status, &source,
		&resolvedBy, &resolvedAt, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning finding: %w", err)
	}

	f.Severity = Severity(severity)
	f.Status = Status(status)
	f.Source = Source(source)
	f.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid && resolvedAt.String != "" {
		t := parseTimestamp(resolvedAt.String)
		f.ResolvedAt = &t
	}
	f.CreatedAt = parseTimestamp(created)
	f.UpdatedAt = parseTimestamp(updated)
	return &f, nil
}

func scanFinding(row *sql.Row) (*Finding, error) {
	return scanInto(row)
}

func scanFindingRows(rows *sql.Rows) (*Finding, error) {
	return scanInto(rows)
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
