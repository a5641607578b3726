package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gkchatty/gkchatty-local/internal/db"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Store provides CRUD operations for document records.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new document record. A UUID is generated when the ID
// is empty; status defaults to pending.
func (s *Store) Create(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if doc.SourceType == "" {
		doc.SourceType = SourceText
	}
	doc.UploadedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, original_file_name, source_type, mime_type,
			size_bytes, content_hash, storage_key, namespace, chunk_count, status, error, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.OriginalFileName, string(doc.SourceType), doc.MimeType,
		doc.SizeBytes, doc.ContentHash, doc.StorageKey, doc.Namespace, doc.ChunkCount,
		string(doc.Status), doc.Error, doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// GetByID retrieves a document by ID.
func (s *Store) GetByID(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return doc, err
}

// GetByHash finds a document in a namespace with the given content
// hash. Used to detect re-uploads of identical content.
func (s *Store) GetByHash(ctx context.Context, namespace, contentHash string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` FROM documents WHERE namespace = ? AND content_hash = ? ORDER BY uploaded_at DESC LIMIT 1`,
		namespace, contentHash)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return doc, err
}

// GetByName finds the most recent document in a namespace with the
// given original file name.
func (s *Store) GetByName(ctx context.Context, namespace, fileName string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` FROM documents WHERE namespace = ? AND original_file_name = ? ORDER BY uploaded_at DESC LIMIT 1`,
		namespace, fileName)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return doc, err
}

// Filter controls which documents List returns. Zero values mean no
// filtering on that field.
type Filter struct {
	Namespace string
	UserID    string
	Status    Status
	Limit     int
	Offset    int
}

// List returns documents matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Document, error) {
	query := selectColumns + ` FROM documents`

	var clauses []string
	var args []any

	if filter.Namespace != "" {
		clauses = append(clauses, "namespace = ?")
		args = append(args, filter.Namespace)
	}
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY uploaded_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// SetStatus updates a document's lifecycle status. The error message is
// cleared unless the status is error.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, errMsg string) error {
	if status != StatusError {
		errMsg = ""
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error = ? WHERE id = ?`,
		string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkIndexed records a successful indexing pass: status ready, the
// chunk count, and the indexing timestamp.
func (s *Store) MarkIndexed(ctx context.Context, id string, chunkCount int) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = 'ready', error = '', chunk_count = ?, indexed_at = ? WHERE id = ?`,
		chunkCount, now, id)
	if err != nil {
		return fmt.Errorf("marking document indexed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the total number of document records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// CountByNamespace returns per-namespace document counts.
func (s *Store) CountByNamespace(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT namespace, COUNT(*) FROM documents GROUP BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("counting documents by namespace: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var ns string
		var n int
		if err := rows.Scan(&ns, &n); err != nil {
			return nil, fmt.Errorf("scanning namespace count: %w", err)
		}
		counts[ns] = n
	}
	return counts, rows.Err()
}

// CountByStatus returns per-status document counts.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting documents by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[Status(st)] = n
	}
	return counts, rows.Err()
}

const selectColumns = `SELECT id, user_id, original_file_name, source_type, mime_type,
	size_bytes, content_hash, storage_key, namespace, chunk_count, status, error, uploaded_at, indexed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Document, error) {
	var (
		doc                Document
		sourceType, status string
		uploadedAt         string
		indexedAt          sql.NullString
	)

	err := sc.Scan(&doc.ID, &doc.UserID, &doc.OriginalFileName, &sourceType, &doc.MimeType,
		&doc.SizeBytes, &doc.ContentHash, &doc.StorageKey, &doc.Namespace, &doc.ChunkCount,
		&status, &doc.Error, &uploadedAt, &indexedAt)
	if err != nil {
		return nil, err
	}

	doc.SourceType = SourceType(sourceType)
	doc.Status = Status(status)
	doc.UploadedAt = parseTimestamp(uploadedAt)
	if indexedAt.Valid {
		t := parseTimestamp(indexedAt.String)
		doc.IndexedAt = &t
	}

	return &doc, nil
}

func scanDocument(row *sql.Row) (*Document, error) {
	return scanInto(row)
}

func scanDocumentRows(rows *sql.Rows) (*Document, error) {
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
