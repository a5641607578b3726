package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gkchatty/gkchatty-local/internal/config"
	"github.com/gkchatty/gkchatty-local/internal/documents"
	"github.com/gkchatty/gkchatty-local/internal/embeddings"
	"github.com/gkchatty/gkchatty-local/internal/llm"
	"github.com/gkchatty/gkchatty-local/internal/logger"
	"github.com/gkchatty/gkchatty-local/internal/namespaces"
	"github.com/gkchatty/gkchatty-local/internal/progress"
	"github.com/gkchatty/gkchatty-local/internal/storage"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
	"github.com/gkchatty/gkchatty-local/internal/walker"
)

// Pipeline orchestrates the full ingestion workflow:
// walk -> extract -> chunk -> embed -> upsert.
type Pipeline struct {
	docs     *documents.Store
	vectors  vectordb.VectorStore
	embedder embeddings.Embedder
	objects  storage.ObjectStore
	cfg      *config.Config
	chunking ChunkOptions
	reporter progress.Reporter
	registry *namespaces.Store
}

// NewPipeline creates a Pipeline. The object store is optional; without
// one, originals stay on disk and reindexing requires the source tree.
func NewPipeline(
	docs *documents.Store,
	vectors vectordb.VectorStore,
	embedder embeddings.Embedder,
	objects storage.ObjectStore,
	cfg *config.Config,
) *Pipeline {
	return &Pipeline{
		docs:     docs,
		vectors:  vectors,
		embedder: embedder,
		objects:  objects,
		cfg:      cfg,
		chunking: DefaultChunkOptions,
	}
}

// SetReporter sets the progress reporter for long runs.
func (p *Pipeline) SetReporter(r progress.Reporter) {
	p.reporter = r
}

// SetRegistry makes the pipeline maintain the namespace registry:
// rows are ensured after index runs and their status and counts kept
// fresh. Registry failures never fail a run.
func (p *Pipeline) SetRegistry(reg *namespaces.Store) {
	p.registry = reg
}

// DirOptions controls a directory ingest run.
type DirOptions struct {
	Namespace string
	UserID    string
	Include   []string
	Exclude   []string
	Force     bool // Reindex files even when their hash is unchanged.
}

// Result summarizes the outcome of an ingest or reindex run.
type Result struct {
	FilesProcessed int
	FilesSkipped   int
	FilesFailed    int
	ChunksIndexed  int
	Duration       time.Duration
	Errors         []error
}

// CostEstimate is a dry-run projection of what an ingest would embed.
type CostEstimate struct {
	TotalFiles      int
	TotalChunks     int
	EmbeddingTokens int
	EstimatedCost   float64
	Model           string
}

// IngestDir walks a directory tree and indexes every changed document
// into the given namespace. Files are processed concurrently up to the
// configured limit.
func (p *Pipeline) IngestDir(ctx context.Context, root string, opts DirOptions) (*Result, error) {
	start := time.Now()
	ns := p.namespace(opts.Namespace)

	files, err := p.walk(root, opts)
	if err != nil {
		return nil, err
	}

	state, err := LoadState(p.statePath())
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	result := &Result{}
	var changed []walker.FileInfo
	for _, f := range files {
		if !opts.Force && !state.IsChanged(ns, f.RelPath, f.ContentHash) {
			result.FilesSkipped++
			continue
		}
		changed = append(changed, f)
	}

	if len(changed) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	if p.reporter != nil {
		p.reporter.Start(len(changed))
		defer p.reporter.Finish()
	}

	concurrency := p.cfg.MaxConcurrency
	if concurrency < 1 {
		concurrency = 5
	}

	// Circuit breaker: cancel remaining work when the embedding
	// provider reports quota exhaustion. Post-run bookkeeping keeps
	// the caller's context.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var quotaExhausted int64

	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex
	var processed int64
	var wg sync.WaitGroup
	indexed := make(map[string]FileState)

	for _, file := range changed {
		if atomic.LoadInt64(&quotaExhausted) > 0 {
			mu.Lock()
			result.Errors = append(result.Errors, fmt.Errorf("index %s: skipped (embedding quota exhausted)", file.RelPath))
			result.FilesFailed++
			mu.Unlock()
			p.step(&processed, file.RelPath)
			continue
		}

		select {
		case <-runCtx.Done():
			mu.Lock()
			result.Errors = append(result.Errors, runCtx.Err())
			result.FilesFailed++
			mu.Unlock()
			p.step(&processed, file.RelPath)
			continue
		case sem <- struct{}{}:
		}

		prior, _ := state.Get(ns, file.RelPath)

		wg.Add(1)
		go func(f walker.FileInfo, prior FileState) {
			defer wg.Done()
			defer func() { <-sem }()

			doc, chunks, err := p.indexFile(runCtx, f, ns, opts.UserID, prior)
			mu.Lock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("index %s: %w", f.RelPath, err))
				result.FilesFailed++
				if isQuotaError(err) {
					atomic.StoreInt64(&quotaExhausted, 1)
					cancel()
				}
			} else {
				result.FilesProcessed++
				result.ChunksIndexed += chunks
				indexed[f.RelPath] = FileState{Hash: f.ContentHash, DocumentID: doc.ID}
			}
			mu.Unlock()
			p.step(&processed, f.RelPath)
		}(file, prior)
	}

	wg.Wait()

	for rel, fs := range indexed {
		state.Set(ns, rel, fs)
	}
	if err := state.Save(p.statePath()); err != nil {
		return result, fmt.Errorf("save state: %w", err)
	}

	p.syncRegistry(ctx, ns, opts.UserID, namespaces.StatusReady)

	result.Duration = time.Since(start)
	return result, nil
}

// DryRun estimates embedding cost for a directory ingest without
// calling any provider.
func (p *Pipeline) DryRun(ctx context.Context, root string, opts DirOptions) (*CostEstimate, error) {
	ns := p.namespace(opts.Namespace)

	files, err := p.walk(root, opts)
	if err != nil {
		return nil, err
	}

	state, err := LoadState(p.statePath())
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	estimate := &CostEstimate{Model: p.embedder.Name()}
	for _, f := range files {
		if !opts.Force && !state.IsChanged(ns, f.RelPath, f.ContentHash) {
			continue
		}
		estimate.TotalFiles++
		estimate.TotalChunks += int(f.Size)/p.chunking.MaxChars + 1
		// Same 4-chars-per-token approximation the cost table uses.
		estimate.EmbeddingTokens += int(f.Size) / 4
	}

	estimate.EstimatedCost = llm.EstimateEmbeddingCost(p.embedder.Name(), estimate.EmbeddingTokens)
	return estimate, nil
}

// IngestUpload indexes a single uploaded document. A prior document
// with the same file name in the namespace is replaced; identical
// content that is already indexed is returned as-is.
func (p *Pipeline) IngestUpload(ctx context.Context, userID, namespace, fileName string, content []byte) (*documents.Document, error) {
	ns := p.namespace(namespace)

	sourceType, ok := walker.DetectSourceType(fileName)
	if !ok {
		return nil, fmt.Errorf("unsupported document type for %q", fileName)
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	if existing, err := p.docs.GetByHash(ctx, ns, hash); err == nil && existing.Status == documents.StatusReady {
		return existing, nil
	}

	ext, err := Extract(content, sourceType)
	if err != nil {
		return nil, err
	}

	// Replace the superseded version, if any.
	if old, err := p.docs.GetByName(ctx, ns, fileName); err == nil {
		if err := p.removeIndexed(ctx, old); err != nil {
			return nil, fmt.Errorf("replacing %s: %w", fileName, err)
		}
	}

	doc := &documents.Document{
		ID:               uuid.New().String(),
		UserID:           userID,
		OriginalFileName: fileName,
		SourceType:       ext.SourceType,
		SizeBytes:        int64(len(content)),
		ContentHash:      hash,
		Namespace:        ns,
		Status:           documents.StatusIndexing,
	}

	if p.objects != nil {
		key, err := storage.DocumentKey(userID, doc.ID, fileName)
		if err != nil {
			return nil, err
		}
		_, mime, err := p.objects.Put(ctx, key, "", bytes.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("storing original: %w", err)
		}
		doc.StorageKey = key
		doc.MimeType = mime
	}

	if err := p.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	chunks, err := p.embedAndUpsert(ctx, doc, ext)
	if err != nil {
		_ = p.docs.SetStatus(ctx, doc.ID, documents.StatusError, err.Error())
		return nil, err
	}
	if err := p.docs.MarkIndexed(ctx, doc.ID, chunks); err != nil {
		return nil, err
	}

	p.syncRegistry(ctx, ns, userID, namespaces.StatusReady)

	return p.docs.GetByID(ctx, doc.ID)
}

// RemoveDocument deletes a document record along with its chunks and
// stored original.
func (p *Pipeline) RemoveDocument(ctx context.Context, id string) error {
	doc, err := p.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := p.removeIndexed(ctx, doc); err != nil {
		return err
	}
	p.refreshCounts(ctx, doc.Namespace)
	return nil
}

// PurgeNamespace removes every document of a namespace: vector chunks,
// stored originals, catalog rows, and the recorded ingest state. The
// registry row itself stays; deleting it is the caller's call.
func (p *Pipeline) PurgeNamespace(ctx context.Context, namespace string) error {
	docs, err := p.docs.List(ctx, documents.Filter{Namespace: namespace})
	if err != nil {
		return err
	}
	for i := range docs {
		doc := &docs[i]
		if doc.StorageKey != "" && p.objects != nil {
			if err := p.objects.Delete(ctx, doc.StorageKey); err != nil {
				wlog := logger.FromContext(ctx)
				wlog.Warn().Err(err).Str("key", doc.StorageKey).Msg("failed to delete stored original")
			}
		}
		if err := p.docs.Delete(ctx, doc.ID); err != nil && !errors.Is(err, documents.ErrNotFound) {
			return fmt.Errorf("deleting document %s: %w", doc.ID, err)
		}
	}
	if err := p.vectors.DeleteNamespace(ctx, namespace); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}

	state, err := LoadState(p.statePath())
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	state.Forget(namespace)
	return state.Save(p.statePath())
}

// ReindexNamespace re-embeds every document of a namespace from its
// stored original. Existing vectors are wiped first so orphaned chunks
// cannot survive.
func (p *Pipeline) ReindexNamespace(ctx context.Context, namespace string) (*Result, error) {
	start := time.Now()

	docs, err := p.docs.List(ctx, documents.Filter{Namespace: namespace})
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if p.registry != nil {
		if err := p.registry.SetStatus(ctx, namespace, namespaces.StatusIndexing); err != nil && !errors.Is(err, namespaces.ErrNotFound) {
			wlog := logger.FromContext(ctx)
			wlog.Warn().Err(err).Str("namespace", namespace).Msg("registry status update failed")
		}
	}

	if err := p.vectors.DeleteNamespace(ctx, namespace); err != nil {
		return nil, fmt.Errorf("clearing namespace %s: %w", namespace, err)
	}
	if len(docs) == 0 {
		p.syncRegistry(ctx, namespace, "", namespaces.StatusReady)
		result.Duration = time.Since(start)
		return result, nil
	}

	if p.reporter != nil {
		p.reporter.Start(len(docs))
		defer p.reporter.Finish()
	}

	for i := range docs {
		doc := &docs[i]
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err)
			break
		}

		chunks, err := p.reindexDocument(ctx, doc)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("reindex %s: %w", doc.OriginalFileName, err))
			result.FilesFailed++
			_ = p.docs.SetStatus(ctx, doc.ID, documents.StatusError, err.Error())
		} else {
			result.FilesProcessed++
			result.ChunksIndexed += chunks
		}
		if p.reporter != nil {
			p.reporter.Update(i+1, doc.OriginalFileName)
		}
	}

	// A reindex wipes first, so any failure leaves the namespace
	// incomplete and worth flagging.
	status := namespaces.StatusReady
	if result.FilesFailed > 0 {
		status = namespaces.StatusError
	}
	p.syncRegistry(ctx, namespace, "", status)

	result.Duration = time.Since(start)
	return result, nil
}

// indexFile ingests one walked file, replacing a prior version when the
// state carries its document ID.
func (p *Pipeline) indexFile(ctx context.Context, f walker.FileInfo, namespace, userID string, prior FileState) (*documents.Document, int, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("read: %w", err)
	}

	ext, err := Extract(content, f.SourceType)
	if err != nil {
		return nil, 0, err
	}

	if prior.DocumentID != "" {
		if old, err := p.docs.GetByID(ctx, prior.DocumentID); err == nil {
			if err := p.removeIndexed(ctx, old); err != nil {
				return nil, 0, fmt.Errorf("replacing prior version: %w", err)
			}
		}
	}

	doc := &documents.Document{
		ID:               uuid.New().String(),
		UserID:           userID,
		OriginalFileName: f.RelPath,
		SourceType:       ext.SourceType,
		SizeBytes:        f.Size,
		ContentHash:      f.ContentHash,
		Namespace:        namespace,
		Status:           documents.StatusIndexing,
	}

	if p.objects != nil {
		key, keyErr := storage.DocumentKey(userID, doc.ID, filepath.Base(f.RelPath))
		if keyErr == nil {
			if _, mime, putErr := p.objects.Put(ctx, key, "", bytes.NewReader(content)); putErr == nil {
				doc.StorageKey = key
				doc.MimeType = mime
			} else {
				// The index still works without the stored original;
				// only reindex-from-storage is lost.
				wlog := logger.FromContext(ctx)
				wlog.Warn().Err(putErr).Str("file", f.RelPath).Msg("failed to store original")
			}
		}
	}

	if err := p.docs.Create(ctx, doc); err != nil {
		return nil, 0, err
	}

	chunks, err := p.embedAndUpsert(ctx, doc, ext)
	if err != nil {
		_ = p.docs.SetStatus(ctx, doc.ID, documents.StatusError, err.Error())
		return nil, 0, err
	}
	if err := p.docs.MarkIndexed(ctx, doc.ID, chunks); err != nil {
		return nil, 0, err
	}

	return doc, chunks, nil
}

func (p *Pipeline) reindexDocument(ctx context.Context, doc *documents.Document) (int, error) {
	if doc.StorageKey == "" || p.objects == nil {
		return 0, errors.New("original content not in object store")
	}

	rc, err := p.objects.Get(ctx, doc.StorageKey)
	if err != nil {
		return 0, fmt.Errorf("fetching original: %w", err)
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return 0, fmt.Errorf("reading original: %w", err)
	}

	_ = p.docs.SetStatus(ctx, doc.ID, documents.StatusIndexing, "")

	ext, err := Extract(content, string(doc.SourceType))
	if err != nil {
		return 0, err
	}

	chunks, err := p.embedAndUpsert(ctx, doc, ext)
	if err != nil {
		return 0, err
	}
	return chunks, p.docs.MarkIndexed(ctx, doc.ID, chunks)
}

// embedAndUpsert chunks the extraction, embeds all chunks in one batch,
// and upserts them into the document's namespace.
func (p *Pipeline) embedAndUpsert(ctx context.Context, doc *documents.Document, ext *Extraction) (int, error) {
	chunks := Chunk(ext.Text, p.chunking)
	if len(chunks) == 0 {
		return 0, errors.New("document has no extractable text")
	}

	vecs, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	now := time.Now().UTC()
	vdocs := make([]vectordb.Document, len(chunks))
	for i, chunk := range chunks {
		vdocs[i] = vectordb.Document{
			ID:        fmt.Sprintf("%s:%d", doc.ID, i),
			Content:   chunk,
			Embedding: vecs[i],
			Metadata: vectordb.Metadata{
				DocumentID:  doc.ID,
				FileName:    doc.OriginalFileName,
				SourceType:  string(doc.SourceType),
				ChunkIndex:  i,
				TotalChunks: len(chunks),
				ContentHash: doc.ContentHash,
				UploadedBy:  doc.UserID,
				LastUpdated: now,
			},
		}
	}

	if err := p.vectors.Upsert(ctx, doc.Namespace, vdocs); err != nil {
		return 0, fmt.Errorf("storing chunks: %w", err)
	}
	return len(chunks), nil
}

// removeIndexed deletes a document's chunks, stored original, and row.
func (p *Pipeline) removeIndexed(ctx context.Context, doc *documents.Document) error {
	if err := p.vectors.DeleteByDocumentID(ctx, doc.Namespace, doc.ID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if doc.StorageKey != "" && p.objects != nil {
		if err := p.objects.Delete(ctx, doc.StorageKey); err != nil {
			wlog := logger.FromContext(ctx)
			wlog.Warn().Err(err).Str("key", doc.StorageKey).Msg("failed to delete stored original")
		}
	}
	if err := p.docs.Delete(ctx, doc.ID); err != nil && !errors.Is(err, documents.ErrNotFound) {
		return err
	}
	return nil
}

func (p *Pipeline) walk(root string, opts DirOptions) ([]walker.FileInfo, error) {
	include := opts.Include
	if len(include) == 0 {
		include = p.cfg.Include
	}
	exclude := opts.Exclude
	if len(exclude) == 0 {
		exclude = p.cfg.Exclude
	}
	return walker.Walk(walker.Config{
		RootDir: root,
		Include: include,
		Exclude: exclude,
	})
}

func (p *Pipeline) namespace(override string) string {
	if override != "" {
		return override
	}
	if p.cfg.Namespace != "" {
		return p.cfg.Namespace
	}
	return config.DefaultNamespace
}

// syncRegistry ensures the registry row for a namespace and refreshes
// its counts and status after an index run.
func (p *Pipeline) syncRegistry(ctx context.Context, namespace, userID string, status namespaces.Status) {
	if p.registry == nil {
		return
	}
	log := logger.FromContext(ctx)

	owner := ""
	if userID != "" && namespace == namespaces.ForUser(userID) {
		owner = userID
	}
	if err := p.registry.Ensure(ctx, namespace, owner, ""); err != nil {
		log.Warn().Err(err).Str("namespace", namespace).Msg("registry ensure failed")
		return
	}
	p.refreshCounts(ctx, namespace)
	if err := p.registry.SetStatus(ctx, namespace, status); err != nil {
		log.Warn().Err(err).Str("namespace", namespace).Msg("registry status update failed")
	}
}

// refreshCounts pushes the catalog and vector counts for a namespace
// into the registry, if one is attached.
func (p *Pipeline) refreshCounts(ctx context.Context, namespace string) {
	if p.registry == nil {
		return
	}
	counts, err := p.docs.CountByNamespace(ctx)
	if err != nil {
		wlog := logger.FromContext(ctx)
		wlog.Warn().Err(err).Msg("document count refresh failed")
		return
	}
	if err := p.registry.UpdateCounts(ctx, namespace, counts[namespace], p.vectors.Count(namespace)); err != nil && !errors.Is(err, namespaces.ErrNotFound) {
		wlog := logger.FromContext(ctx)
		wlog.Warn().Err(err).Str("namespace", namespace).Msg("registry count refresh failed")
	}
}

func (p *Pipeline) statePath() string {
	return filepath.Join(p.cfg.DataDir, "state.json")
}

func (p *Pipeline) step(processed *int64, name string) {
	count := atomic.AddInt64(processed, 1)
	if p.reporter != nil {
		p.reporter.Update(int(count), name)
	}
}

// isQuotaError detects provider quota or rate responses worth tripping
// the circuit breaker for.
func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429")
}
