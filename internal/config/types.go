package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// Preset names a ready-made provider combination for the init wizard.
type Preset string

const (
	// PresetLocal runs everything against a local Ollama daemon. No API
	// keys, no data leaves the machine.
	PresetLocal Preset = "local"
	// PresetHybrid embeds locally via Ollama but answers with Anthropic.
	PresetHybrid Preset = "hybrid"
	// PresetCloud uses OpenAI for both embeddings and completions.
	PresetCloud Preset = "cloud"
)

// StorageBackend selects where uploaded document objects are kept.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// Config is the top-level gkchatty configuration, corresponding to .gkchatty.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	DataDir           string       `yaml:"data_dir" koanf:"data_dir"`
	Namespace         string       `yaml:"namespace" koanf:"namespace"`
	Include           []string     `yaml:"include" koanf:"include"`
	Exclude           []string     `yaml:"exclude" koanf:"exclude"`
	MaxConcurrency    int          `yaml:"max_concurrency" koanf:"max_concurrency"`
	LLMRequestsPerMin int          `yaml:"llm_requests_per_min" koanf:"llm_requests_per_min"`

	Retrieval RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Server    ServerConfig    `yaml:"server" koanf:"server"`
	Storage   StorageConfig   `yaml:"storage" koanf:"storage"`
	Limits    LimitsConfig    `yaml:"limits" koanf:"limits"`
	Alerts    AlertsConfig    `yaml:"alerts" koanf:"alerts"`
}

// RetrievalConfig tunes the RAG retrieval step.
type RetrievalConfig struct {
	TopK            int     `yaml:"top_k" koanf:"top_k"`
	MinSimilarity   float64 `yaml:"min_similarity" koanf:"min_similarity"`
	MaxContextChars int     `yaml:"max_context_chars" koanf:"max_context_chars"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host          string   `yaml:"host" koanf:"host"`
	Port          int      `yaml:"port" koanf:"port"`
	JWTSecret     string   `yaml:"jwt_secret" koanf:"jwt_secret"`
	TokenTTLHours int      `yaml:"token_ttl_hours" koanf:"token_ttl_hours"`
	CORSOrigins   []string `yaml:"cors_origins" koanf:"cors_origins"`
	OpenSignup    bool     `yaml:"open_signup" koanf:"open_signup"`
}

// StorageConfig selects and configures the object store for uploads.
type StorageConfig struct {
	Backend  StorageBackend `yaml:"backend" koanf:"backend"`
	LocalDir string         `yaml:"local_dir" koanf:"local_dir"`
	S3       S3Config       `yaml:"s3" koanf:"s3"`
}

// S3Config holds settings for the S3 backend. Credentials come from the
// standard AWS environment/credential chain, never from this file. SSE
// is empty (bucket default), "aes256", or a KMS key ID.
type S3Config struct {
	Bucket    string `yaml:"bucket" koanf:"bucket"`
	Region    string `yaml:"region" koanf:"region"`
	KeyPrefix string `yaml:"key_prefix" koanf:"key_prefix"`
	SSE       string `yaml:"sse" koanf:"sse"`
}

// RuleConfig is one rate-limit rule: sustained rate plus burst headroom.
type RuleConfig struct {
	PerMinute int `yaml:"per_minute" koanf:"per_minute"`
	Burst     int `yaml:"burst" koanf:"burst"`
}

// LimitsConfig holds per-route-group API rate limits.
type LimitsConfig struct {
	Enabled bool       `yaml:"enabled" koanf:"enabled"`
	Auth    RuleConfig `yaml:"auth" koanf:"auth"`
	Chat    RuleConfig `yaml:"chat" koanf:"chat"`
	API     RuleConfig `yaml:"api" koanf:"api"`
}

// AlertsConfig configures the default operational alert webhook. Additional
// channels can be registered over the admin API.
type AlertsConfig struct {
	WebhookURL  string `yaml:"webhook_url" koanf:"webhook_url"`
	MinSeverity string `yaml:"min_severity" koanf:"min_severity"`
}
