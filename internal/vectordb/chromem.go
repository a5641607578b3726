package vectordb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/gkchatty/gkchatty-local/internal/embeddings"
)

// Namespaces map to chromem collections one to one. The prefix keeps the
// mapping reversible when listing collections.
const collectionPrefix = "kb-"

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db        *chromem.DB
	embedder  embeddings.Embedder
	embedFunc chromem.EmbeddingFunc
}

// NewChromemStore creates a ChromemStore. When dir is non-empty the store
// persists to disk and reloads existing collections on open; an empty dir
// gives an in-memory store.
func NewChromemStore(dir string, embedder embeddings.Embedder) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dir, true)
		if err != nil {
			return nil, fmt.Errorf("open vector store at %s: %w", dir, err)
		}
	}

	return &ChromemStore{
		db:        db,
		embedder:  embedder,
		embedFunc: embeddings.ToChromemFunc(embedder),
	}, nil
}

func (s *ChromemStore) collection(namespace string) *chromem.Collection {
	return s.db.GetCollection(collectionPrefix+namespace, s.embedFunc)
}

func (s *ChromemStore) Upsert(ctx context.Context, namespace string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	col, err := s.db.GetOrCreateCollection(collectionPrefix+namespace, nil, s.embedFunc)
	if err != nil {
		return fmt.Errorf("create namespace %s: %w", namespace, err)
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  metadataToMap(doc.Metadata),
		}
	}

	return col.AddDocuments(ctx, chromDocs, 1)
}

func (s *ChromemStore) Search(ctx context.Context, namespace, query string, limit int, filter *SearchFilter) ([]SearchResult, error) {
	col := s.collection(namespace)
	if col == nil {
		return nil, nil
	}

	if limit <= 0 {
		limit = 10
	}

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.Query(ctx, query, limit, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: mapToMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
		}
	}

	return searchResults, nil
}

func (s *ChromemStore) GetByDocumentID(ctx context.Context, namespace, documentID string) ([]Document, error) {
	col := s.collection(namespace)
	if col == nil {
		return nil, nil
	}
	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	where := map[string]string{"document_id": documentID}

	// Use the document ID as the query text with count as limit to pull every
	// matching chunk.
	results, err := col.Query(ctx, documentID, count, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query by document id: %w", err)
	}

	docs := make([]Document, len(results))
	for i, r := range results {
		docs[i] = Document{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: mapToMetadata(r.Metadata),
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Metadata.ChunkIndex < docs[j].Metadata.ChunkIndex
	})

	return docs, nil
}

func (s *ChromemStore) DeleteByDocumentID(ctx context.Context, namespace, documentID string) error {
	col := s.collection(namespace)
	if col == nil {
		return nil
	}
	where := map[string]string{"document_id": documentID}
	return col.Delete(ctx, where, nil)
}

func (s *ChromemStore) DeleteNamespace(ctx context.Context, namespace string) error {
	return s.db.DeleteCollection(collectionPrefix + namespace)
}

func (s *ChromemStore) Namespaces() []string {
	var names []string
	for name := range s.db.ListCollections() {
		if strings.HasPrefix(name, collectionPrefix) {
			names = append(names, strings.TrimPrefix(name, collectionPrefix))
		}
	}
	sort.Strings(names)
	return names
}

func (s *ChromemStore) Count(namespace string) int {
	col := s.collection(namespace)
	if col == nil {
		return 0
	}
	return col.Count()
}

func (s *ChromemStore) Stats() Stats {
	stats := Stats{
		Dimensions: s.embedder.Dimensions(),
		EmbedModel: s.embedder.Name(),
		Namespaces: []NamespaceStats{},
	}
	for _, name := range s.Namespaces() {
		count := s.Count(name)
		stats.TotalVectors += count
		stats.Namespaces = append(stats.Namespaces, NamespaceStats{
			Name:        name,
			VectorCount: count,
		})
	}
	return stats
}

// metadataToMap converts Metadata to a flat map[string]string for chromem.
func metadataToMap(m Metadata) map[string]string {
	return map[string]string{
		"document_id":  m.DocumentID,
		"file_name":    m.FileName,
		"source_type":  m.SourceType,
		"chunk_index":  strconv.Itoa(m.ChunkIndex),
		"total_chunks": strconv.Itoa(m.TotalChunks),
		"content_hash": m.ContentHash,
		"uploaded_by":  m.UploadedBy,
		"last_updated": m.LastUpdated.Format(time.RFC3339),
	}
}

// mapToMetadata converts a flat map[string]string back to Metadata.
func mapToMetadata(m map[string]string) Metadata {
	chunkIndex, _ := strconv.Atoi(m["chunk_index"])
	totalChunks, _ := strconv.Atoi(m["total_chunks"])
	lastUpdated, _ := time.Parse(time.RFC3339, m["last_updated"])

	return Metadata{
		DocumentID:  m["document_id"],
		FileName:    m["file_name"],
		SourceType:  m["source_type"],
		ChunkIndex:  chunkIndex,
		TotalChunks: totalChunks,
		ContentHash: m["content_hash"],
		UploadedBy:  m["uploaded_by"],
		LastUpdated: lastUpdated,
	}
}

// buildWhereClause converts a SearchFilter to a chromem where clause.
func buildWhereClause(filter *SearchFilter) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	if filter.DocumentID != nil {
		where["document_id"] = *filter.DocumentID
	}
	if filter.SourceType != nil {
		where["source_type"] = *filter.SourceType
	}
	if filter.UploadedBy != nil {
		where["uploaded_by"] = *filter.UploadedBy
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
