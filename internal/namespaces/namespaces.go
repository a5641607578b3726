// Package namespaces maintains the namespace registry: which corpora
// exist, who owns them, what environment they serve, and how fresh
// their indexes are. The vector store partitions by namespace; the
// registry is the authoritative list of namespaces that should exist.
package namespaces

import "time"

// Environment tags a namespace with the deployment stage it serves.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// ParseEnvironment validates an environment string.
func ParseEnvironment(s string) (Environment, bool) {
	switch Environment(s) {
	case EnvDev, EnvStaging, EnvProd:
		return Environment(s), true
	}
	return "", false
}

// Status describes the indexing state of a namespace.
type Status string

const (
	StatusPending  Status = "pending"
	StatusIndexing Status = "indexing"
	StatusReady    Status = "ready"
	StatusError    Status = "error"
)

// Namespace is one registered corpus.
type Namespace struct {
	Name          string      `json:"name"`
	Owner         string      `json:"owner,omitempty"`
	Environment   Environment `json:"environment"`
	Description   string      `json:"description,omitempty"`
	Status        Status      `json:"status"`
	DocumentCount int         `json:"document_count"`
	VectorCount   int         `json:"vector_count"`
	LastIndexedAt *time.Time  `json:"last_indexed_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// ForUser returns the personal namespace for a user ID.
func ForUser(userID string) string {
	return "user-" + userID
}
