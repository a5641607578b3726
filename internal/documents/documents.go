// Package documents manages the metadata records for uploaded and
// ingested knowledge-base documents. The original bytes live in the
// object store and the embedded chunks in the vector store; rows here
// tie the two together.
package documents

import (
	"fmt"
	"time"
)

// SourceType identifies the format of a document. It decides how the
// extractor turns the raw bytes into embeddable text.
type SourceType string

const (
	SourceMarkdown SourceType = "markdown"
	SourceHTML     SourceType = "html"
	SourceText     SourceType = "text"
	SourceJSON     SourceType = "json"
	SourceOpenAPI  SourceType = "openapi"
)

// ParseSourceType validates a source type string.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(s) {
	case SourceMarkdown, SourceHTML, SourceText, SourceJSON, SourceOpenAPI:
		return SourceType(s), nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

// Status tracks a document through the indexing lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusIndexing Status = "indexing"
	StatusReady    Status = "ready"
	StatusError    Status = "error"
)

// Document is one knowledge-base document record.
type Document struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	OriginalFileName string     `json:"original_file_name"`
	SourceType       SourceType `json:"source_type"`
	MimeType         string     `json:"mime_type,omitempty"`
	SizeBytes        int64      `json:"size_bytes"`
	ContentHash      string     `json:"content_hash"`
	StorageKey       string     `json:"storage_key,omitempty"`
	Namespace        string     `json:"namespace"`
	ChunkCount       int        `json:"chunk_count"`
	Status           Status     `json:"status"`
	Error            string     `json:"error,omitempty"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	IndexedAt        *time.Time `json:"indexed_at,omitempty"`
}
