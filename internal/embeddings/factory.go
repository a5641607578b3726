package embeddings

import (
	"fmt"
	"os"

	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/config"
)

// ollamaDimensions maps known Ollama embedding models to their output sizes.
// Unlisted models fall back to 768, which covers most nomic-style models.
var ollamaDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
}

// NewFromConfig builds the embedder named by the configuration.
func NewFromConfig(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		apiKey := auth.GetAPIKey("openai")
		if apiKey == "" {
			return nil, fmt.Errorf("openai embeddings require OPENAI_API_KEY")
		}
		return NewOpenAIEmbedder(apiKey, OpenAIModel(cfg.EmbeddingModel)), nil

	case config.ProviderOllama:
		dims, ok := ollamaDimensions[cfg.EmbeddingModel]
		if !ok {
			dims = 768
		}
		return NewOllamaEmbedder(cfg.EmbeddingModel, dims, os.Getenv("OLLAMA_HOST")), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}
}
