package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/diag"
	"github.com/gkchatty/gkchatty-local/internal/documents"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

// handleHealthCheck probes the database and vector index and reports
// the configured providers.
func (s *Server) handleHealthCheck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("gkchatty %s\n", Version))

	if s.deps.Env.DB != nil {
		if err := s.deps.Env.DB.PingContext(ctx); err != nil {
			sb.WriteString(fmt.Sprintf("database: unreachable (%v)\n", err))
		} else {
			sb.WriteString("database: ok\n")
		}
	}
	if s.deps.Env.Vectors != nil {
		stats := s.deps.Env.Vectors.Stats()
		sb.WriteString(fmt.Sprintf("vector index: ok (%d vectors in %d namespaces)\n",
			stats.TotalVectors, len(stats.Namespaces)))
	}
	if cfg := s.deps.Env.Config; cfg != nil {
		sb.WriteString(fmt.Sprintf("llm provider: %s (%s)\n", cfg.Provider, cfg.Model))
		sb.WriteString(fmt.Sprintf("embedding model: %s (%s)\n", cfg.EmbeddingModel, cfg.EmbeddingProvider))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// handleSearchKnowledge performs semantic search over the knowledge base.
func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	namespace := request.GetString("namespace", s.deps.DefaultNamespace)
	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	var filter *vectordb.SearchFilter
	if st := request.GetString("source_type", ""); st != "" {
		if _, err := documents.ParseSourceType(st); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter = &vectordb.SearchFilter{SourceType: &st}
	}

	results, err := s.deps.Env.Vectors.Search(ctx, namespace, query, limit, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No results in namespace %q. The knowledge base may be empty; ingest documents with `gkchatty ingest`.",
			namespace,
		)), nil
	}

	return mcp.NewToolResultText(formatSearchResults(results)), nil
}

// handleIndexStats describes the vector index.
func (s *Server) handleIndexStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.deps.Env.Vectors.Stats()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total vectors: %d\n", stats.TotalVectors))
	if stats.Dimensions > 0 {
		sb.WriteString(fmt.Sprintf("Dimensions: %d\n", stats.Dimensions))
	}
	if stats.EmbedModel != "" {
		sb.WriteString(fmt.Sprintf("Embedding model: %s\n", stats.EmbedModel))
	}
	sb.WriteString(fmt.Sprintf("Namespaces: %d\n", len(stats.Namespaces)))
	for _, ns := range stats.Namespaces {
		sb.WriteString(fmt.Sprintf("  %s: %d vectors\n", ns.Name, ns.VectorCount))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// handleLookupDocument resolves a document by id or file name.
func (s *Server) handleLookupDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	fileName := request.GetString("file_name", "")
	if id == "" && fileName == "" {
		return mcp.NewToolResultError("provide either id or file_name"), nil
	}

	var (
		doc *documents.Document
		err error
	)
	if id != "" {
		doc, err = s.deps.Docs.GetByID(ctx, id)
	} else {
		namespace := request.GetString("namespace", s.deps.DefaultNamespace)
		doc, err = s.deps.Docs.GetByName(ctx, namespace, fileName)
	}
	if errors.Is(err, documents.ErrNotFound) {
		return mcp.NewToolResultError("document not found"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("looking up document: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID: %s\n", doc.ID))
	sb.WriteString(fmt.Sprintf("File: %s\n", doc.OriginalFileName))
	sb.WriteString(fmt.Sprintf("Namespace: %s\n", doc.Namespace))
	sb.WriteString(fmt.Sprintf("Source type: %s\n", doc.SourceType))
	sb.WriteString(fmt.Sprintf("Status: %s\n", doc.Status))
	sb.WriteString(fmt.Sprintf("Size: %d bytes\n", doc.SizeBytes))
	sb.WriteString(fmt.Sprintf("Chunks: %d\n", doc.ChunkCount))
	sb.WriteString(fmt.Sprintf("Uploaded: %s\n", doc.UploadedAt.Format("2006-01-02 15:04:05")))
	if doc.Error != "" {
		sb.WriteString(fmt.Sprintf("Error: %s\n", doc.Error))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// handleQueryAudit returns recent audit entries matching the filters.
func (s *Server) handleQueryAudit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}
	filter := audit.QueryFilter{
		Action:   audit.Action(request.GetString("action", "")),
		Username: request.GetString("username", ""),
		Limit:    limit,
	}

	entries, err := s.deps.Audit.Query(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("querying audit trail: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No matching audit entries."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d entr%s:\n", len(entries), plural(len(entries), "y", "ies")))
	for _, e := range entries {
		outcome := "ok"
		if !e.Success {
			outcome = "failed"
		}
		sb.WriteString(fmt.Sprintf("%s  %-18s %-12s %s",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Username, outcome))
		if e.Detail != "" {
			sb.WriteString("  " + e.Detail)
		}
		sb.WriteString("\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// handleRunDiagnostics runs the named checks and returns the table.
func (s *Server) handleRunDiagnostics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var names []string
	if raw := request.GetString("checks", ""); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}

	runner := diag.NewRunner(s.deps.Env)
	report, err := runner.Run(ctx, names)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(report.Table()), nil
}

// formatSearchResults renders results as text for agent consumption.
func formatSearchResults(results []vectordb.SearchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n", len(results)))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("\n--- Result %d ---\n", i+1))

		meta := r.Document.Metadata
		if meta.FileName != "" {
			location := meta.FileName
			if meta.TotalChunks > 1 {
				location += fmt.Sprintf(" (chunk %d/%d)", meta.ChunkIndex+1, meta.TotalChunks)
			}
			sb.WriteString(fmt.Sprintf("Source: %s\n", location))
		}
		if meta.SourceType != "" {
			sb.WriteString(fmt.Sprintf("Type: %s\n", meta.SourceType))
		}
		sb.WriteString(fmt.Sprintf("Similarity: %.1f%%\n", r.Similarity*100))

		sb.WriteString("\n")
		sb.WriteString(r.Document.Content)
		sb.WriteString("\n")
	}

	return sb.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
