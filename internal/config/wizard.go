package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .gkchatty.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to gkchatty! Let's set up your local assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Deployment preset.
	presetPrompt := promptui.Select{
		Label: "Select deployment preset",
		Items: []string{
			"local  - Ollama only, nothing leaves this machine",
			"hybrid - local embeddings (Ollama), answers via Anthropic",
			"cloud  - OpenAI for embeddings and answers",
		},
	}
	presetIdx, _, err := presetPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("preset selection: %w", err)
	}
	names := []Preset{PresetLocal, PresetHybrid, PresetCloud}
	models := GetPreset(names[presetIdx])
	cfg.Provider = models.Provider
	cfg.Model = models.Model
	cfg.EmbeddingProvider = models.EmbeddingProvider
	cfg.EmbeddingModel = models.EmbeddingModel

	// 2. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory (database, vectors, reports)",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = dataDir

	// 3. Default namespace.
	nsPrompt := promptui.Prompt{
		Label:   "Default namespace for ingested documents",
		Default: cfg.Namespace,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("namespace cannot be empty")
			}
			return nil
		},
	}
	ns, err := nsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("namespace: %w", err)
	}
	cfg.Namespace = strings.TrimSpace(ns)

	// 4. Object storage backend.
	storagePrompt := promptui.Select{
		Label: "Object storage for uploads",
		Items: []string{"local filesystem", "s3"},
	}
	storageIdx, _, err := storagePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("storage selection: %w", err)
	}
	if storageIdx == 1 {
		cfg.Storage.Backend = StorageS3
		bucketPrompt := promptui.Prompt{
			Label: "S3 bucket name",
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("bucket cannot be empty")
				}
				return nil
			},
		}
		bucket, err := bucketPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("s3 bucket: %w", err)
		}
		cfg.Storage.S3.Bucket = strings.TrimSpace(bucket)

		regionPrompt := promptui.Prompt{
			Label:   "S3 region",
			Default: "us-east-1",
		}
		region, err := regionPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("s3 region: %w", err)
		}
		cfg.Storage.S3.Region = strings.TrimSpace(region)
	} else {
		cfg.Storage.Backend = StorageLocal
		cfg.Storage.LocalDir = cfg.DataDir + "/objects"
	}

	// 5. Rate limiting.
	limitsPrompt := promptui.Select{
		Label: "Enable API rate limiting",
		Items: []string{"yes (recommended)", "no"},
	}
	limitsIdx, _, err := limitsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("rate limit selection: %w", err)
	}
	cfg.Limits.Enabled = limitsIdx == 0

	// Check for API keys.
	for _, p := range []ProviderType{cfg.Provider, cfg.EmbeddingProvider} {
		envVar := APIKeyEnvVar(p)
		if envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: set %s in your environment before running gkchatty.\n", envVar)
		}
	}

	// Save to .gkchatty.yml.
	configPath := ".gkchatty.yml"
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", configPath)
	return cfg, nil
}
