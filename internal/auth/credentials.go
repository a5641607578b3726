package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ServerSession stores the token obtained by `gkchatty login` so later CLI
// invocations can talk to the API without prompting again.
type ServerSession struct {
	ServerURL string `json:"server_url,omitempty"`
	Token     string `json:"token,omitempty"`
	Username  string `json:"username,omitempty"`
}

// APIKeyCredentials stores an API key for a provider.
type APIKeyCredentials struct {
	APIKey string `json:"api_key,omitempty"`
}

// Credentials holds stored credentials for the server and all providers.
type Credentials struct {
	Server    *ServerSession     `json:"server,omitempty"`
	Anthropic *APIKeyCredentials `json:"anthropic,omitempty"`
	OpenAI    *APIKeyCredentials `json:"openai,omitempty"`
}

// CredentialPath returns the path to the credentials file (~/.gkchatty/credentials.json).
func CredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".gkchatty", "credentials.json"), nil
}

// LoadCredentials reads credentials from ~/.gkchatty/credentials.json.
// Returns empty credentials if the file doesn't exist.
func LoadCredentials() (*Credentials, error) {
	path, err := CredentialPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return &creds, nil
}

// SaveCredentials writes credentials to ~/.gkchatty/credentials.json with
// restricted permissions.
func SaveCredentials(creds *Credentials) error {
	path, err := CredentialPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// SaveSession stores a server session, preserving any stored API keys.
func SaveSession(session *ServerSession) error {
	creds, err := LoadCredentials()
	if err != nil {
		return err
	}
	creds.Server = session
	return SaveCredentials(creds)
}

// LoadSession returns the stored server session, or nil when not logged in.
func LoadSession() (*ServerSession, error) {
	creds, err := LoadCredentials()
	if err != nil {
		return nil, err
	}
	return creds.Server, nil
}

// GetAPIKey returns the API key for the given provider.
// It checks the environment variable first, then falls back to stored credentials.
func GetAPIKey(provider string) string {
	// Priority 1: Environment variable.
	switch provider {
	case "anthropic":
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			return key
		}
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return key
		}
	}

	// Priority 2: Stored credentials.
	creds, err := LoadCredentials()
	if err != nil {
		return ""
	}

	switch provider {
	case "anthropic":
		if creds.Anthropic != nil {
			return creds.Anthropic.APIKey
		}
	case "openai":
		if creds.OpenAI != nil {
			return creds.OpenAI.APIKey
		}
	}

	return ""
}
