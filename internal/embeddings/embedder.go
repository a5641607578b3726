// Package embeddings abstracts text-embedding providers. The abstraction
// is what lets the assistant run fully locally: swap the OpenAI backend
// for Ollama and no other package changes.
package embeddings

import "context"

// Embedder turns text into vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the width of the vectors this embedder produces.
	Dimensions() int

	// Name identifies the backing model, e.g. "text-embedding-3-small".
	Name() string
}
