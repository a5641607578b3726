package documents

import (
	"context"
	"errors"
	"testing"

	"github.com/gkchatty/gkchatty-local/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	// Documents reference users, so seed one.
	_, err = database.Exec(
		`INSERT INTO users (id, username, password_hash) VALUES ('user-1', 'alice', 'x')`)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return NewStore(database)
}

func sampleDoc(namespace string) *Document {
	return &Document{
		UserID:           "user-1",
		OriginalFileName: "guide.md",
		SourceType:       SourceMarkdown,
		MimeType:         "text/markdown",
		SizeBytes:        1024,
		ContentHash:      "abc123",
		StorageKey:       "documents/user-1/doc/guide.md",
		Namespace:        namespace,
	}
}

func TestCreateAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc := sampleDoc("shared")
	if err := store.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("expected generated ID")
	}
	if doc.Status != StatusPending {
		t.Errorf("expected pending status, got %q", doc.Status)
	}

	got, err := store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OriginalFileName != "guide.md" {
		t.Errorf("unexpected file name %q", got.OriginalFileName)
	}
	if got.SourceType != SourceMarkdown {
		t.Errorf("unexpected source type %q", got.SourceType)
	}
	if got.Namespace != "shared" {
		t.Errorf("unexpected namespace %q", got.Namespace)
	}
	if got.UploadedAt.IsZero() {
		t.Error("expected non-zero uploaded_at")
	}
	if got.IndexedAt != nil {
		t.Error("expected nil indexed_at before indexing")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByHash(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc := sampleDoc("shared")
	if err := store.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetByHash(ctx, "shared", "abc123")
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if got.ID != doc.ID {
		t.Errorf("expected doc %s, got %s", doc.ID, got.ID)
	}

	// Same hash in a different namespace is a different document.
	if _, err := store.GetByHash(ctx, "other", "abc123"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other namespace, got %v", err)
	}
}

func TestGetByName(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc := sampleDoc("shared")
	if err := store.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetByName(ctx, "shared", "guide.md")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if got.ID != doc.ID {
		t.Errorf("expected doc %s, got %s", doc.ID, got.ID)
	}
}

func TestListWithFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, ns := range []string{"shared", "shared", "engineering"} {
		doc := sampleDoc(ns)
		doc.ContentHash = ""
		if err := store.Create(ctx, doc); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	shared, err := store.List(ctx, Filter{Namespace: "shared"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(shared) != 2 {
		t.Errorf("expected 2 shared documents, got %d", len(shared))
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 documents, got %d", len(all))
	}

	limited, err := store.List(ctx, Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 document with limit, got %d", len(limited))
	}
}

func TestListByStatus(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc := sampleDoc("shared")
	if err := store.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.MarkIndexed(ctx, doc.ID, 4); err != nil {
		t.Fatalf("mark indexed: %v", err)
	}

	failed := sampleDoc("shared")
	failed.ContentHash = "other"
	if err := store.Create(ctx, failed); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.SetStatus(ctx, failed.ID, StatusError, "embed quota exhausted"); err != nil {
		t.Fatalf("set status: %v", err)
	}

	ready, err := store.List(ctx, Filter{Status: StatusReady})
	if err != nil {
		t.Fatalf("list ready: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != doc.ID {
		t.Errorf("expected only the indexed document, got %v", ready)
	}
}

func TestMarkIndexed(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc := sampleDoc("shared")
	if err := store.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.MarkIndexed(ctx, doc.ID, 7); err != nil {
		t.Fatalf("mark indexed: %v", err)
	}

	got, err := store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusReady {
		t.Errorf("expected ready status, got %q", got.Status)
	}
	if got.ChunkCount != 7 {
		t.Errorf("expected 7 chunks, got %d", got.ChunkCount)
	}
	if got.IndexedAt == nil || got.IndexedAt.IsZero() {
		t.Error("expected indexed_at to be set")
	}
}

func TestSetStatusError(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc := sampleDoc("shared")
	if err := store.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.SetStatus(ctx, doc.ID, StatusError, "extract failed"); err != nil {
		t.Fatalf("set status: %v", err)
	}

	got, err := store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusError || got.Error != "extract failed" {
		t.Errorf("expected error status with message, got %q / %q", got.Status, got.Error)
	}

	// Moving back to a healthy status clears the message.
	if err := store.SetStatus(ctx, doc.ID, StatusIndexing, "stale"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err = store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Error != "" {
		t.Errorf("expected cleared error, got %q", got.Error)
	}
}

func TestDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc := sampleDoc("shared")
	if err := store.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetByID(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestCounts(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, ns := range []string{"shared", "shared", "engineering"} {
		doc := sampleDoc(ns)
		doc.ContentHash = ""
		if err := store.Create(ctx, doc); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	total, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 documents, got %d", total)
	}

	byNS, err := store.CountByNamespace(ctx)
	if err != nil {
		t.Fatalf("count by namespace: %v", err)
	}
	if byNS["shared"] != 2 || byNS["engineering"] != 1 {
		t.Errorf("unexpected namespace counts: %v", byNS)
	}

	byStatus, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count by status: %v", err)
	}
	if byStatus[StatusPending] != 3 {
		t.Errorf("unexpected status counts: %v", byStatus)
	}
}

func TestParseSourceType(t *testing.T) {
	for _, valid := range []string{"markdown", "html", "text", "json", "openapi"} {
		if _, err := ParseSourceType(valid); err != nil {
			t.Errorf("ParseSourceType(%q) unexpected error: %v", valid, err)
		}
	}
	if _, err := ParseSourceType("pdf"); err == nil {
		t.Error("expected unknown source type to be rejected")
	}
}
