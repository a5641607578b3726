package ingest

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gkchatty/gkchatty-local/internal/config"
	"github.com/gkchatty/gkchatty-local/internal/db"
	"github.com/gkchatty/gkchatty-local/internal/documents"
	"github.com/gkchatty/gkchatty-local/internal/namespaces"
	"github.com/gkchatty/gkchatty-local/internal/storage"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

// mockEmbedder produces deterministic normalized vectors from text.
type mockEmbedder struct {
	dims int
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, m.dims)
		for j, ch := range text {
			vec[(int(ch)+j)%m.dims] += 1.0
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for j := range vec {
				vec[j] = float32(float64(vec[j]) / norm)
			}
		}
		results[i] = vec
	}
	return results, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) Name() string    { return "mock" }

// quotaEmbedder fails every call with a quota error.
type quotaEmbedder struct{}

func (quotaEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding request failed: quota exceeded")
}
func (quotaEmbedder) Dimensions() int { return 8 }
func (quotaEmbedder) Name() string    { return "quota" }

type testEnv struct {
	pipeline *Pipeline
	docs     *documents.Store
	vectors  vectordb.VectorStore
	objects  storage.ObjectStore
	registry *namespaces.Store
	cfg      *config.Config
}

func setupPipeline(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if _, err := database.Exec(
		`INSERT INTO users (id, username, password_hash) VALUES ('user-1', 'alice', 'x')`); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	embedder := &mockEmbedder{dims: 32}
	vectors, err := vectordb.NewChromemStore("", embedder)
	if err != nil {
		t.Fatalf("vector store: %v", err)
	}
	objects := storage.NewLocal(filepath.Join(t.TempDir(), "objects"))

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Include = nil
	cfg.Exclude = nil
	cfg.MaxConcurrency = 2

	docs := documents.NewStore(database)
	registry := namespaces.NewStore(database)
	pipeline := NewPipeline(docs, vectors, embedder, objects, cfg)
	pipeline.SetRegistry(registry)
	return &testEnv{
		pipeline: pipeline,
		docs:     docs,
		vectors:  vectors,
		objects:  objects,
		registry: registry,
		cfg:      cfg,
	}
}

func writeTestKB(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"README.md":        "# Handbook\n\nEverything you need to know.",
		"guides/deploy.md": "# Deploying\n\nPush to main and the pipeline ships it.",
		"notes.txt":        "The VPN endpoint moved to vpn2.example.com last March.",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestIngestDirIndexesFiles(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()
	root := writeTestKB(t)

	result, err := env.pipeline.IngestDir(ctx, root, DirOptions{Namespace: "shared", UserID: "user-1"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.FilesProcessed != 3 {
		t.Errorf("processed: got %d, want 3 (errors: %v)", result.FilesProcessed, result.Errors)
	}
	if result.FilesFailed != 0 {
		t.Errorf("failed: got %d, want 0 (errors: %v)", result.FilesFailed, result.Errors)
	}
	if result.ChunksIndexed < 3 {
		t.Errorf("chunks: got %d, want at least 3", result.ChunksIndexed)
	}

	docs, err := env.docs.List(ctx, documents.Filter{Namespace: "shared"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 document records, got %d", len(docs))
	}
	for _, doc := range docs {
		if doc.Status != documents.StatusReady {
			t.Errorf("%s: status %q, want ready (error %q)", doc.OriginalFileName, doc.Status, doc.Error)
		}
		if doc.ChunkCount < 1 {
			t.Errorf("%s: chunk count %d, want at least 1", doc.OriginalFileName, doc.ChunkCount)
		}
		if doc.IndexedAt == nil {
			t.Errorf("%s: expected indexed_at to be set", doc.OriginalFileName)
		}
	}

	if count := env.vectors.Count("shared"); count != result.ChunksIndexed {
		t.Errorf("vector count: got %d, want %d", count, result.ChunksIndexed)
	}

	// State file lands in the data dir.
	if _, err := os.Stat(filepath.Join(env.cfg.DataDir, "state.json")); err != nil {
		t.Errorf("expected state file: %v", err)
	}
}

func TestIngestDirSkipsUnchanged(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()
	root := writeTestKB(t)
	opts := DirOptions{Namespace: "shared", UserID: "user-1"}

	if _, err := env.pipeline.IngestDir(ctx, root, opts); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	result, err := env.pipeline.IngestDir(ctx, root, opts)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if result.FilesProcessed != 0 {
		t.Errorf("processed on rerun: got %d, want 0", result.FilesProcessed)
	}
	if result.FilesSkipped != 3 {
		t.Errorf("skipped on rerun: got %d, want 3", result.FilesSkipped)
	}
}

func TestIngestDirReplacesChangedFile(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()
	root := writeTestKB(t)
	opts := DirOptions{Namespace: "shared", UserID: "user-1"}

	if _, err := env.pipeline.IngestDir(ctx, root, opts); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	oldDoc, err := env.docs.GetByName(ctx, "shared", "notes.txt")
	if err != nil {
		t.Fatalf("get old doc: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "notes.txt"),
		[]byte("The VPN endpoint moved again, now vpn3.example.com."), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := env.pipeline.IngestDir(ctx, root, opts)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if result.FilesProcessed != 1 || result.FilesSkipped != 2 {
		t.Errorf("got processed=%d skipped=%d, want 1/2", result.FilesProcessed, result.FilesSkipped)
	}

	// The superseded record is gone, one live record per file remains.
	if _, err := env.docs.GetByID(ctx, oldDoc.ID); !errors.Is(err, documents.ErrNotFound) {
		t.Errorf("expected old document deleted, got err=%v", err)
	}
	docs, err := env.docs.List(ctx, documents.Filter{Namespace: "shared"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 3 {
		t.Errorf("expected 3 records after replace, got %d", len(docs))
	}
	chunks, err := env.vectors.GetByDocumentID(ctx, "shared", oldDoc.ID)
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected old chunks removed, got %d", len(chunks))
	}
}

func TestIngestDirForceReindexesAll(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()
	root := writeTestKB(t)
	opts := DirOptions{Namespace: "shared", UserID: "user-1"}

	if _, err := env.pipeline.IngestDir(ctx, root, opts); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	opts.Force = true
	result, err := env.pipeline.IngestDir(ctx, root, opts)
	if err != nil {
		t.Fatalf("forced ingest: %v", err)
	}
	if result.FilesProcessed != 3 || result.FilesSkipped != 0 {
		t.Errorf("got processed=%d skipped=%d, want 3/0", result.FilesProcessed, result.FilesSkipped)
	}
}

func TestIngestDirQuotaTripsCircuitBreaker(t *testing.T) {
	env := setupPipeline(t)
	env.cfg.MaxConcurrency = 1
	env.pipeline.embedder = quotaEmbedder{}
	ctx := context.Background()
	root := writeTestKB(t)

	result, err := env.pipeline.IngestDir(ctx, root, DirOptions{Namespace: "shared", UserID: "user-1"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.FilesProcessed != 0 {
		t.Errorf("processed: got %d, want 0", result.FilesProcessed)
	}
	if result.FilesFailed != 3 {
		t.Errorf("failed: got %d, want 3 (errors: %v)", result.FilesFailed, result.Errors)
	}
	var sawQuota bool
	for _, e := range result.Errors {
		if strings.Contains(e.Error(), "quota") {
			sawQuota = true
		}
	}
	if !sawQuota {
		t.Errorf("expected a quota error in %v", result.Errors)
	}
}

func TestDryRun(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()
	root := writeTestKB(t)

	estimate, err := env.pipeline.DryRun(ctx, root, DirOptions{Namespace: "shared"})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if estimate.TotalFiles != 3 {
		t.Errorf("total files: got %d, want 3", estimate.TotalFiles)
	}
	if estimate.EmbeddingTokens <= 0 {
		t.Errorf("expected positive token estimate, got %d", estimate.EmbeddingTokens)
	}
	if estimate.Model != "mock" {
		t.Errorf("model: got %q, want mock", estimate.Model)
	}

	// Nothing indexed yet, so a dry run changes no state.
	if count := env.vectors.Count("shared"); count != 0 {
		t.Errorf("dry run wrote %d vectors", count)
	}

	// After a real ingest the same dry run reports nothing to do.
	if _, err := env.pipeline.IngestDir(ctx, root, DirOptions{Namespace: "shared", UserID: "user-1"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	estimate, err = env.pipeline.DryRun(ctx, root, DirOptions{Namespace: "shared"})
	if err != nil {
		t.Fatalf("second dry run: %v", err)
	}
	if estimate.TotalFiles != 0 {
		t.Errorf("total files after ingest: got %d, want 0", estimate.TotalFiles)
	}
}

func TestIngestUpload(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()

	content := []byte("# Expense Policy\n\nKeep receipts for anything over 50 euro.")
	doc, err := env.pipeline.IngestUpload(ctx, "user-1", "shared", "policy.md", content)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.Status != documents.StatusReady {
		t.Errorf("status: got %q, want ready (error %q)", doc.Status, doc.Error)
	}
	if doc.SourceType != documents.SourceMarkdown {
		t.Errorf("source type: got %q, want markdown", doc.SourceType)
	}
	if doc.ChunkCount < 1 {
		t.Errorf("chunk count: got %d, want at least 1", doc.ChunkCount)
	}
	if doc.SizeBytes != int64(len(content)) {
		t.Errorf("size: got %d, want %d", doc.SizeBytes, len(content))
	}

	// Original is in the object store under the document key.
	if doc.StorageKey == "" {
		t.Fatal("expected storage key")
	}
	info, err := env.objects.Head(ctx, doc.StorageKey)
	if err != nil {
		t.Fatalf("head original: %v", err)
	}
	if info.Size != int64(len(content)) {
		t.Errorf("stored size: got %d, want %d", info.Size, len(content))
	}

	chunks, err := env.vectors.GetByDocumentID(ctx, "shared", doc.ID)
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	if len(chunks) != doc.ChunkCount {
		t.Errorf("stored chunks: got %d, want %d", len(chunks), doc.ChunkCount)
	}
}

func TestIngestUploadDeduplicatesByHash(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()
	content := []byte("# Same\n\nIdentical content.")

	first, err := env.pipeline.IngestUpload(ctx, "user-1", "shared", "same.md", content)
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, err := env.pipeline.IngestUpload(ctx, "user-1", "shared", "same.md", content)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same document back, got %s and %s", first.ID, second.ID)
	}

	count, err := env.docs.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 record, got %d", count)
	}
}

func TestIngestUploadReplacesSameName(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()

	old, err := env.pipeline.IngestUpload(ctx, "user-1", "shared", "faq.md", []byte("# FAQ\n\nOld answers."))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	updated, err := env.pipeline.IngestUpload(ctx, "user-1", "shared", "faq.md", []byte("# FAQ\n\nNew answers."))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if updated.ID == old.ID {
		t.Error("expected a fresh document for replaced content")
	}

	if _, err := env.docs.GetByID(ctx, old.ID); !errors.Is(err, documents.ErrNotFound) {
		t.Errorf("expected old record deleted, got err=%v", err)
	}
	oldChunks, err := env.vectors.GetByDocumentID(ctx, "shared", old.ID)
	if err != nil {
		t.Fatalf("get old chunks: %v", err)
	}
	if len(oldChunks) != 0 {
		t.Errorf("expected old chunks removed, got %d", len(oldChunks))
	}
	if _, err := env.objects.Head(ctx, old.StorageKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected old original deleted, got err=%v", err)
	}
}

func TestIngestUploadUnsupportedType(t *testing.T) {
	env := setupPipeline(t)
	if _, err := env.pipeline.IngestUpload(context.Background(), "user-1", "shared", "tool.exe", []byte("MZ")); err == nil {
		t.Fatal("expected error for unsupported file type")
	}
}

func TestRemoveDocument(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()

	doc, err := env.pipeline.IngestUpload(ctx, "user-1", "shared", "gone.md", []byte("# Gone\n\nSoon deleted."))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := env.pipeline.RemoveDocument(ctx, doc.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := env.docs.GetByID(ctx, doc.ID); !errors.Is(err, documents.ErrNotFound) {
		t.Errorf("expected record deleted, got err=%v", err)
	}
	chunks, err := env.vectors.GetByDocumentID(ctx, "shared", doc.ID)
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected chunks removed, got %d", len(chunks))
	}
	if _, err := env.objects.Head(ctx, doc.StorageKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected original deleted, got err=%v", err)
	}
}

func TestRemoveDocumentNotFound(t *testing.T) {
	env := setupPipeline(t)
	err := env.pipeline.RemoveDocument(context.Background(), "no-such-id")
	if !errors.Is(err, documents.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReindexNamespace(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()

	for _, f := range []struct{ name, content string }{
		{"a.md", "# Alpha\n\nFirst document."},
		{"b.md", "# Beta\n\nSecond document."},
	} {
		if _, err := env.pipeline.IngestUpload(ctx, "user-1", "shared", f.name, []byte(f.content)); err != nil {
			t.Fatalf("upload %s: %v", f.name, err)
		}
	}
	before := env.vectors.Count("shared")

	result, err := env.pipeline.ReindexNamespace(ctx, "shared")
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if result.FilesProcessed != 2 {
		t.Errorf("processed: got %d, want 2 (errors: %v)", result.FilesProcessed, result.Errors)
	}
	if result.FilesFailed != 0 {
		t.Errorf("failed: got %d, want 0 (errors: %v)", result.FilesFailed, result.Errors)
	}
	if after := env.vectors.Count("shared"); after != before {
		t.Errorf("vector count after reindex: got %d, want %d", after, before)
	}

	docs, err := env.docs.List(ctx, documents.Filter{Namespace: "shared"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, doc := range docs {
		if doc.Status != documents.StatusReady {
			t.Errorf("%s: status %q after reindex", doc.OriginalFileName, doc.Status)
		}
	}
}

func TestReindexNamespaceWithoutStoredOriginal(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()

	// A record with no storage key cannot be re-embedded.
	doc := &documents.Document{
		UserID:           "user-1",
		OriginalFileName: "legacy.md",
		SourceType:       documents.SourceMarkdown,
		Namespace:        "shared",
	}
	if err := env.docs.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := env.pipeline.ReindexNamespace(ctx, "shared")
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if result.FilesFailed != 1 {
		t.Errorf("failed: got %d, want 1", result.FilesFailed)
	}

	got, err := env.docs.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != documents.StatusError {
		t.Errorf("status: got %q, want error", got.Status)
	}
	if got.Error == "" {
		t.Error("expected error message on the record")
	}
}

// The checked-in corpus under testdata/kb covers every supported source
// format, including an OpenAPI spec stored as YAML.
func TestIngestDirSampleCorpus(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()

	result, err := env.pipeline.IngestDir(ctx, filepath.Join("testdata", "kb"), DirOptions{Namespace: "shared", UserID: "user-1"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.FilesProcessed != 6 {
		t.Errorf("processed: got %d, want 6 (errors: %v)", result.FilesProcessed, result.Errors)
	}
	if result.FilesFailed != 0 {
		t.Errorf("failed: got %d, want 0 (errors: %v)", result.FilesFailed, result.Errors)
	}

	docs, err := env.docs.List(ctx, documents.Filter{Namespace: "shared"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	types := make(map[string]documents.SourceType, len(docs))
	for _, doc := range docs {
		if doc.Status != documents.StatusReady {
			t.Errorf("%s: status %q (error %q)", doc.OriginalFileName, doc.Status, doc.Error)
		}
		types[doc.OriginalFileName] = doc.SourceType
	}

	want := map[string]documents.SourceType{
		"README.md":          documents.SourceMarkdown,
		"guides/deploy.md":   documents.SourceMarkdown,
		"guides/oncall.html": documents.SourceHTML,
		"api/errors.json":    documents.SourceJSON,
		"api/service.yaml":   documents.SourceOpenAPI,
		"notes.txt":          documents.SourceText,
	}
	for name, wantType := range want {
		got, ok := types[name]
		if !ok {
			t.Errorf("%s: no document record", name)
			continue
		}
		if got != wantType {
			t.Errorf("%s: source type %q, want %q", name, got, wantType)
		}
	}
}
