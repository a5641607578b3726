// Package mcp exposes GKChatty's ops surface as MCP tools over stdio,
// so agent runtimes can search the knowledge base and run diagnostics
// without going through the HTTP API.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/diag"
	"github.com/gkchatty/gkchatty-local/internal/documents"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Deps carries the stores and services the tools read. Env doubles as
// the health probe target since it already knows the whole deployment.
type Deps struct {
	Env   *diag.Env
	Docs  *documents.Store
	Audit *audit.Store

	// DefaultNamespace is searched when a tool call names none.
	DefaultNamespace string
}

// Server wraps an MCP server exposing the ops tools.
type Server struct {
	deps Deps
	mcp  *server.MCPServer
}

// NewServer creates an MCP server with the given dependencies.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps}

	s.mcp = server.NewMCPServer(
		"gkchatty",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers.
func (s *Server) registerTools() {
	s.mcp.AddTool(healthCheckTool, s.handleHealthCheck)
	s.mcp.AddTool(searchKnowledgeTool, s.handleSearchKnowledge)
	s.mcp.AddTool(indexStatsTool, s.handleIndexStats)
	s.mcp.AddTool(lookupDocumentTool, s.handleLookupDocument)
	s.mcp.AddTool(queryAuditTool, s.handleQueryAudit)
	s.mcp.AddTool(runDiagnosticsTool, s.handleRunDiagnostics)
}

// Serve starts the MCP server on stdio. Stdout is the protocol
// channel; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
