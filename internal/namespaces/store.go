package namespaces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gkchatty/gkchatty-local/internal/db"
)

// ErrNotFound is returned when a namespace does not exist.
var ErrNotFound = errors.New("namespace not found")

// Store provides access to the namespace registry table.
type Store struct {
	db *db.DB
}

// NewStore creates a namespace registry store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Create registers a new namespace. The name must be unused.
func (s *Store) Create(ctx context.Context, ns *Namespace) error {
	if ns.Environment == "" {
		ns.Environment = EnvDev
	}
	if ns.Status == "" {
		ns.Status = StatusPending
	}
	ns.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO namespaces (name, owner, environment, description, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ns.Name, ns.Owner, string(ns.Environment), ns.Description, string(ns.Status), ns.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating namespace %s: %w", ns.Name, err)
	}
	return nil
}

// Ensure registers a namespace if it is not registered yet. Existing
// registrations are left untouched.
func (s *Store) Ensure(ctx context.Context, name, owner string, env Environment) error {
	if env == "" {
		env = EnvDev
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO namespaces (name, owner, environment, status, created_at)
		 VALUES (?, ?, ?, 'pending', ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, owner, string(env), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ensuring namespace %s: %w", name, err)
	}
	return nil
}

// Get retrieves one namespace by name.
func (s *Store) Get(ctx context.Context, name string) (*Namespace, error) {
	row := s.db.QueryRowContext(ctx, nsColumns+` FROM namespaces WHERE name = ?`, name)
	ns, err := scanNamespace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting namespace %s: %w", name, err)
	}
	return ns, nil
}

// List returns all registered namespaces sorted by name.
func (s *Store) List(ctx context.Context) ([]Namespace, error) {
	rows, err := s.db.QueryContext(ctx, nsColumns+` FROM namespaces ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	defer rows.Close()

	var out []Namespace
	for rows.Next() {
		ns, err := scanNamespace(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning namespace: %w", err)
		}
		out = append(out, *ns)
	}
	return out, rows.Err()
}

// SetStatus updates the indexing status of a namespace.
func (s *Store) SetStatus(ctx context.Context, name string, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE namespaces SET status = ? WHERE name = ?`, string(status), name)
	if err != nil {
		return fmt.Errorf("updating namespace status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCounts refreshes the document and vector counts and stamps
// last_indexed_at.
func (s *Store) UpdateCounts(ctx context.Context, name string, documents, vectors int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE namespaces SET document_count = ?, vector_count = ?, last_indexed_at = ? WHERE name = ?`,
		documents, vectors, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("updating namespace counts: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a namespace registration. Documents and vectors are
// the caller's responsibility.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM namespaces WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting namespace %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const nsColumns = `SELECT name, owner, environment, description, status,
	document_count, vector_count, last_indexed_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNamespace(sc scanner) (*Namespace, error) {
	var (
		ns            Namespace
		env, status   string
		lastIndexedAt sql.NullString
		createdAt     string
	)

	err := sc.Scan(&ns.Name, &ns.Owner, &env, &ns.Description, &status,
		&ns.DocumentCount, &ns.VectorCount, &lastIndexedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	ns.Environment = Environment(env)
	ns.Status = Status(status)
	ns.CreatedAt = parseTimestamp(createdAt)
	if lastIndexedAt.Valid {
		t := parseTimestamp(lastIndexedAt.String)
		ns.LastIndexedAt = &t
	}
	return &ns, nil
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
