package config

// PresetModels describes the provider/model combination behind a preset.
type PresetModels struct {
	Provider          ProviderType
	Model             string
	EmbeddingProvider ProviderType
	EmbeddingModel    string
}

// presets maps each deployment preset to its provider choices.
var presets = map[Preset]PresetModels{
	PresetLocal: {
		Provider:          ProviderOllama,
		Model:             "llama3",
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    "nomic-embed-text",
	},
	PresetHybrid: {
		Provider:          ProviderAnthropic,
		Model:             "claude-sonnet-4-5-20250929",
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    "nomic-embed-text",
	},
	PresetCloud: {
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
	},
}

// DefaultExcludes are glob patterns skipped during ingestion by default.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	"vendor/**",
	"dist/**",
	"build/**",
	"*.min.js",
	"*.min.css",
	"*.lock",
	"package-lock.json",
	"yarn.lock",
}

// DefaultNamespace is the shared corpus every user can query.
const DefaultNamespace = "shared"

// DefaultConfig returns a Config with sensible defaults: cloud providers,
// local object storage, rate limiting on.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		DataDir:           ".gkchatty",
		Namespace:         DefaultNamespace,
		Include:           []string{"**/*.md", "**/*.markdown", "**/*.txt", "**/*.html", "**/*.json", "**/*.yaml", "**/*.yml"},
		Exclude:           DefaultExcludes,
		MaxConcurrency:    5,
		LLMRequestsPerMin: 0,
		Retrieval: RetrievalConfig{
			TopK:            6,
			MinSimilarity:   0.15,
			MaxContextChars: 8000,
		},
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          8080,
			TokenTTLHours: 24,
			CORSOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		},
		Storage: StorageConfig{
			Backend:  StorageLocal,
			LocalDir: ".gkchatty/objects",
		},
		Limits: LimitsConfig{
			Enabled: true,
			Auth:    RuleConfig{PerMinute: 10, Burst: 5},
			Chat:    RuleConfig{PerMinute: 30, Burst: 10},
			API:     RuleConfig{PerMinute: 120, Burst: 30},
		},
		Alerts: AlertsConfig{
			MinSeverity: "warning",
		},
	}
}

// GetPreset returns the models for the given preset. Unknown presets fall
// back to cloud.
func GetPreset(p Preset) PresetModels {
	if m, ok := presets[p]; ok {
		return m
	}
	return presets[PresetCloud]
}
