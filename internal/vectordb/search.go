package vectordb

import (
	"fmt"
	"strings"
)

// FormatResults renders search results as human-readable text for the CLI.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n\n", len(results)))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("--- Result %d (similarity: %.4f) ---\n", i+1, r.Similarity))

		if r.Document.Metadata.FileName != "" {
			source := r.Document.Metadata.FileName
			if r.Document.Metadata.TotalChunks > 1 {
				source += fmt.Sprintf(" (chunk %d/%d)",
					r.Document.Metadata.ChunkIndex+1, r.Document.Metadata.TotalChunks)
			}
			sb.WriteString(fmt.Sprintf("Source: %s\n", source))
		}

		if r.Document.Metadata.SourceType != "" {
			sb.WriteString(fmt.Sprintf("Type: %s\n", r.Document.Metadata.SourceType))
		}
		if r.Document.Metadata.UploadedBy != "" {
			sb.WriteString(fmt.Sprintf("Uploaded by: %s\n", r.Document.Metadata.UploadedBy))
		}

		sb.WriteString("\n")
		sb.WriteString(r.Document.Content)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
