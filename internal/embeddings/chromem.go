package embeddings

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// ToChromemFunc adapts an Embedder to chromem-go's one-text-at-a-time
// embedding function. The vector store uses it only for query embedding;
// ingest embeds in batches and hands chromem precomputed vectors.
func ToChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("embedder %s returned no vector", e.Name())
		}
		return vecs[0], nil
	}
}
