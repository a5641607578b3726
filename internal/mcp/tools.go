package mcp

import "github.com/mark3labs/mcp-go/mcp"

// healthCheckTool defines the health_check MCP tool.
var healthCheckTool = mcp.NewTool("health_check",
	mcp.WithDescription("Check that the GKChatty deployment is reachable: database, vector index and configured providers. Returns status and version."),
)

// searchKnowledgeTool defines the search_knowledge MCP tool.
var searchKnowledgeTool = mcp.NewTool("search_knowledge",
	mcp.WithDescription("Search the knowledge base semantically. Returns matching chunks with their source documents and similarity scores."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithString("namespace",
		mcp.Description("Namespace to search (default: the shared namespace)"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
	mcp.WithString("source_type",
		mcp.Description("Filter results by source document format"),
		mcp.Enum("markdown", "html", "text", "json", "openapi"),
	),
)

// indexStatsTool defines the index_stats MCP tool.
var indexStatsTool = mcp.NewTool("index_stats",
	mcp.WithDescription("Describe the vector index: total vectors, dimensions, embedding model and per-namespace counts."),
)

// lookupDocumentTool defines the lookup_document MCP tool.
var lookupDocumentTool = mcp.NewTool("lookup_document",
	mcp.WithDescription("Look up a knowledge-base document by id or by original file name."),
	mcp.WithString("id",
		mcp.Description("Document id"),
	),
	mcp.WithString("file_name",
		mcp.Description("Original file name, matched within a namespace"),
	),
	mcp.WithString("namespace",
		mcp.Description("Namespace for file name lookups (default: the shared namespace)"),
	),
)

// queryAuditTool defines the query_audit MCP tool.
var queryAuditTool = mcp.NewTool("query_audit",
	mcp.WithDescription("Query the audit trail, newest first."),
	mcp.WithString("action",
		mcp.Description("Filter by action, e.g. login, chat, document_upload"),
	),
	mcp.WithString("username",
		mcp.Description("Filter by username"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default 20)"),
	),
)

// runDiagnosticsTool defines the run_diagnostics MCP tool.
var runDiagnosticsTool = mcp.NewTool("run_diagnostics",
	mcp.WithDescription("Run operational health checks and return the result table. Available checks: db, vector, metadata, storage, ratelimit, api."),
	mcp.WithString("checks",
		mcp.Description("Comma-separated check names (default: all)"),
	),
)
