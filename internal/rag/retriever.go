package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

// RetrievalOptions tune how chunks are pulled from the vector store.
type RetrievalOptions struct {
	// TopK is how many chunks to request from the store.
	TopK int
	// MinSimilarity drops chunks scoring below this floor. Chunks that
	// barely relate to the question produce worse answers than no chunks.
	MinSimilarity float32
	// MaxContextChars caps the size of the assembled context block.
	MaxContextChars int
}

// DefaultRetrievalOptions mirror the server defaults.
func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		TopK:            6,
		MinSimilarity:   0.15,
		MaxContextChars: 8000,
	}
}

// Retriever pulls relevant chunks for a question out of one namespace.
type Retriever struct {
	store vectordb.VectorStore
	opts  RetrievalOptions
}

// NewRetriever creates a Retriever. Zero-valued options fall back to defaults.
func NewRetriever(store vectordb.VectorStore, opts RetrievalOptions) *Retriever {
	def := DefaultRetrievalOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = def.MinSimilarity
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = def.MaxContextChars
	}
	return &Retriever{store: store, opts: opts}
}

// Retrieve searches the namespace and returns chunks above the similarity
// floor, best first.
func (r *Retriever) Retrieve(ctx context.Context, namespace, query string) ([]vectordb.SearchResult, error) {
	results, err := r.store.Search(ctx, namespace, query, r.opts.TopK, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve from %s: %w", namespace, err)
	}

	filtered := results[:0]
	for _, res := range results {
		if res.Similarity >= r.opts.MinSimilarity {
			filtered = append(filtered, res)
		}
	}
	return filtered, nil
}

// BuildContext assembles retrieved chunks into the context block handed to
// the model. Chunks are numbered so the model can cite them; the block is
// truncated at the character budget, never mid-chunk header.
func (r *Retriever) BuildContext(results []vectordb.SearchResult) string {
	var b strings.Builder
	for i, res := range results {
		section := formatChunk(i+1, res)
		if b.Len() > 0 && b.Len()+len(section) > r.opts.MaxContextChars {
			break
		}
		b.WriteString(section)
	}

	text := b.String()
	if len(text) > r.opts.MaxContextChars {
		text = text[:r.opts.MaxContextChars]
	}
	return text
}

func formatChunk(n int, res vectordb.SearchResult) string {
	var b strings.Builder
	md := res.Document.Metadata

	fmt.Fprintf(&b, "[Source %d: %s", n, md.FileName)
	if md.TotalChunks > 1 {
		fmt.Fprintf(&b, " (part %d/%d)", md.ChunkIndex+1, md.TotalChunks)
	}
	b.WriteString("]\n")
	b.WriteString(res.Document.Content)
	b.WriteString("\n\n")
	return b.String()
}
