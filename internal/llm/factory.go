package llm

import (
	"fmt"
	"os"

	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/config"
)

// NewProvider creates a new LLM provider based on the given provider type and
// model. API keys come from the environment first, then stored credentials.
// Supported provider types: "anthropic", "openai", "ollama".
func NewProvider(providerType string, model string) (Provider, error) {
	switch providerType {
	case "anthropic":
		apiKey := auth.GetAPIKey("anthropic")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		return NewAnthropicProvider(apiKey, model), nil

	case "openai":
		apiKey := auth.GetAPIKey("openai")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, model), nil

	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// NewFromConfig builds the configured provider and applies the configured
// request-per-minute limit when one is set.
func NewFromConfig(cfg *config.Config) (Provider, error) {
	provider, err := NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.LLMRequestsPerMin > 0 {
		provider = NewRateLimitedProvider(provider, cfg.LLMRequestsPerMin)
	}
	return provider, nil
}
