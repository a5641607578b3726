package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (GKCHATTY_*). A double underscore nests:
// GKCHATTY_SERVER__PORT maps to server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: GKCHATTY_NAMESPACE -> namespace,
	// GKCHATTY_SERVER__JWT_SECRET -> server.jwt_secret.
	if err := k.Load(env.Provider("GKCHATTY_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "GKCHATTY_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized LLM provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
	ProviderOllama:    true,
}

// validEmbeddingProviders is the set of providers that can embed.
var validEmbeddingProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider != "" && !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of openai, anthropic, ollama", c.Provider)
	}
	if c.Provider != "" && c.Model == "" {
		return fmt.Errorf("model is required when provider is set")
	}

	if c.EmbeddingProvider == "" {
		return fmt.Errorf("embedding_provider is required")
	}
	if !validEmbeddingProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q: must be one of openai, ollama", c.EmbeddingProvider)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("embedding_model is required")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be non-negative")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid storage.backend %q: must be local or s3", c.Storage.Backend)
	}

	if c.Limits.Enabled {
		for name, rule := range map[string]RuleConfig{
			"limits.auth": c.Limits.Auth,
			"limits.chat": c.Limits.Chat,
			"limits.api":  c.Limits.API,
		} {
			if rule.PerMinute <= 0 || rule.Burst <= 0 {
				return fmt.Errorf("%s: per_minute and burst must be positive when limits are enabled", name)
			}
		}
	}

	return nil
}

// DatabasePath returns the SQLite file path under the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "gkchatty.db")
}

// VectorDir returns the vector store persistence directory.
func (c *Config) VectorDir() string {
	return filepath.Join(c.DataDir, "vectordb")
}

// ReportsDir returns the directory for diagnostic run reports.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.DataDir, "reports")
}

// ProfilePath returns the assistant profile file path.
func (c *Config) ProfilePath() string {
	return filepath.Join(c.DataDir, "profile.json")
}

// ObjectsDir returns the directory for the local object store. The
// configured local_dir wins when set.
func (c *Config) ObjectsDir() string {
	if c.Storage.LocalDir != "" {
		return c.Storage.LocalDir
	}
	return filepath.Join(c.DataDir, "objects")
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}
