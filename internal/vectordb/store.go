package vectordb

import "context"

// VectorStore defines the interface for storing and searching document chunks
// by embeddings. Every operation is scoped to a namespace; namespaces are
// fully isolated from each other.
type VectorStore interface {
	// Upsert adds or updates chunks in the given namespace, creating the
	// namespace if it does not exist yet.
	Upsert(ctx context.Context, namespace string, docs []Document) error

	// Search performs a semantic search within one namespace.
	Search(ctx context.Context, namespace, query string, limit int, filter *SearchFilter) ([]SearchResult, error)

	// GetByDocumentID retrieves all chunks belonging to the given document.
	GetByDocumentID(ctx context.Context, namespace, documentID string) ([]Document, error)

	// DeleteByDocumentID removes all chunks belonging to the given document.
	DeleteByDocumentID(ctx context.Context, namespace, documentID string) error

	// DeleteNamespace removes a namespace and every chunk in it.
	DeleteNamespace(ctx context.Context, namespace string) error

	// Namespaces lists the namespaces present in the store, sorted by name.
	Namespaces() []string

	// Count returns the number of chunks in one namespace.
	Count(namespace string) int

	// Stats summarizes the store across all namespaces.
	Stats() Stats
}
