package vectordb

import "time"

// Document represents one chunk of an uploaded document, ready to be stored
// and searched. When Embedding is set the store uses it directly instead of
// calling the embedder, which lets the ingest pipeline batch embedding calls.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  Metadata
}

// Metadata holds structured information about a chunk.
type Metadata struct {
	DocumentID  string // owning row in the documents table
	FileName    string
	SourceType  string
	ChunkIndex  int
	TotalChunks int
	ContentHash string
	UploadedBy  string
	LastUpdated time.Time
}

// SearchResult pairs a chunk with its similarity score.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// SearchFilter allows narrowing search results by metadata fields.
type SearchFilter struct {
	DocumentID *string
	SourceType *string
	UploadedBy *string
}

// NamespaceStats reports vector counts for one namespace.
type NamespaceStats struct {
	Name        string `json:"name"`
	VectorCount int    `json:"vector_count"`
}

// Stats describes the whole store, mirroring an index stats call.
type Stats struct {
	TotalVectors int              `json:"total_vectors"`
	Dimensions   int              `json:"dimensions"`
	EmbedModel   string           `json:"embedding_model"`
	Namespaces   []NamespaceStats `json:"namespaces"`
}
