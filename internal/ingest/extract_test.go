package ingest

import (
	"strings"
	"testing"

	"github.com/gkchatty/gkchatty-local/internal/documents"
)

func TestExtractMarkdown(t *testing.T) {
	content := []byte("# Deploy Guide\n\nRun the release script.\n")

	ext, err := Extract(content, "markdown")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ext.SourceType != documents.SourceMarkdown {
		t.Errorf("source type: got %q, want markdown", ext.SourceType)
	}
	if ext.Title != "Deploy Guide" {
		t.Errorf("title: got %q, want %q", ext.Title, "Deploy Guide")
	}
	if ext.Text != string(content) {
		t.Error("markdown text should pass through unchanged")
	}
}

func TestExtractMarkdownWithoutHeading(t *testing.T) {
	ext, err := Extract([]byte("just a paragraph"), "markdown")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ext.Title != "" {
		t.Errorf("expected empty title, got %q", ext.Title)
	}
}

func TestExtractHTML(t *testing.T) {
	content := []byte(`<!DOCTYPE html>
<html>
<head>
  <title>Onboarding</title>
  <style>body { color: red; }</style>
  <script>alert("nope");</script>
</head>
<body>
  <h1>Welcome</h1>
  <p>First day   checklist.</p>
  <ul><li>Get a badge</li><li>Meet the team</li></ul>
</body>
</html>`)

	ext, err := Extract(content, "html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ext.SourceType != documents.SourceHTML {
		t.Errorf("source type: got %q, want html", ext.SourceType)
	}
	if ext.Title != "Onboarding" {
		t.Errorf("title: got %q, want Onboarding", ext.Title)
	}
	if strings.Contains(ext.Text, "alert") || strings.Contains(ext.Text, "color: red") {
		t.Errorf("script/style content leaked into text:\n%s", ext.Text)
	}
	for _, want := range []string{"Welcome", "First day checklist.", "Get a badge", "Meet the team"} {
		if !strings.Contains(ext.Text, want) {
			t.Errorf("text missing %q:\n%s", want, ext.Text)
		}
	}
}

func TestExtractHTMLTitleFallsBackToH1(t *testing.T) {
	ext, err := Extract([]byte("<html><body><h1>Runbook</h1><p>Steps.</p></body></html>"), "html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ext.Title != "Runbook" {
		t.Errorf("title: got %q, want Runbook", ext.Title)
	}
}

func TestExtractPlainText(t *testing.T) {
	ext, err := Extract([]byte("release notes\nline two"), "text")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ext.SourceType != documents.SourceText {
		t.Errorf("source type: got %q, want text", ext.SourceType)
	}
	if ext.Text != "release notes\nline two" {
		t.Error("text should pass through unchanged")
	}
}

func TestExtractPlainJSON(t *testing.T) {
	content := []byte(`{"service": "billing", "owner": "platform"}`)

	ext, err := Extract(content, "json")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ext.SourceType != documents.SourceJSON {
		t.Errorf("source type: got %q, want json", ext.SourceType)
	}
	if ext.Text != string(content) {
		t.Error("non-spec json should pass through unchanged")
	}
}

func TestExtractOpenAPIFromJSON(t *testing.T) {
	content := []byte(`{
  "openapi": "3.0.0",
  "info": {"title": "Billing API", "version": "2.1", "description": "Invoices and payments."},
  "paths": {
    "/invoices": {
      "get": {
        "summary": "List invoices",
        "parameters": [{"name": "status", "in": "query"}],
        "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
      },
      "post": {"summary": "Create invoice", "responses": {"201": {"description": "Created"}}}
    },
    "/invoices/{id}": {
      "delete": {"summary": "Void invoice", "responses": {"204": {"description": "Voided"}}}
    }
  }
}`)

	ext, err := Extract(content, "json")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ext.SourceType != documents.SourceOpenAPI {
		t.Errorf("source type: got %q, want openapi", ext.SourceType)
	}
	if ext.Title != "Billing API" {
		t.Errorf("title: got %q, want Billing API", ext.Title)
	}
	for _, want := range []string{
		"API: Billing API (version 2.1)",
		"Invoices and payments.",
		"Endpoint: GET /invoices",
		"Summary: List invoices",
		"Parameters: status (in query)",
		"Responses: 200 OK; 401 Unauthorized",
		"Endpoint: POST /invoices",
		"Endpoint: DELETE /invoices/{id}",
	} {
		if !strings.Contains(ext.Text, want) {
			t.Errorf("rendered spec missing %q:\n%s", want, ext.Text)
		}
	}

	// GET before POST for the same path, paths in sorted order.
	getIdx := strings.Index(ext.Text, "Endpoint: GET /invoices")
	postIdx := strings.Index(ext.Text, "Endpoint: POST /invoices")
	if getIdx > postIdx {
		t.Error("expected GET rendered before POST")
	}
}

func TestExtractOpenAPIFromYAML(t *testing.T) {
	content := []byte(`openapi: "3.0.0"
info:
  title: Search API
  version: "1.0"
paths:
  /search:
    get:
      summary: Run a search
      responses:
        "200":
          description: Results
`)

	ext, err := Extract(content, "yaml")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ext.SourceType != documents.SourceOpenAPI {
		t.Errorf("source type: got %q, want openapi", ext.SourceType)
	}
	if !strings.Contains(ext.Text, "Endpoint: GET /search") {
		t.Errorf("rendered spec missing endpoint:\n%s", ext.Text)
	}
}

func TestExtractPlainYAMLBecomesText(t *testing.T) {
	content := []byte("service: billing\nreplicas: 3\n")

	ext, err := Extract(content, "yaml")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ext.SourceType != documents.SourceText {
		t.Errorf("source type: got %q, want text", ext.SourceType)
	}
	if ext.Text != string(content) {
		t.Error("plain yaml should pass through unchanged")
	}
}

func TestExtractOpenAPIWithoutPaths(t *testing.T) {
	ext, err := Extract([]byte(`{"swagger": "2.0", "info": {"title": "Empty API"}}`), "openapi")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(ext.Text, "API: Empty API") {
		t.Errorf("expected header-only rendering, got:\n%s", ext.Text)
	}
}

func TestExtractInvalidOpenAPI(t *testing.T) {
	if _, err := Extract([]byte("not a spec at all {{{"), "openapi"); err == nil {
		t.Fatal("expected error for invalid openapi content")
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	if _, err := Extract([]byte("data"), "pdf"); err == nil {
		t.Fatal("expected error for unsupported source type")
	}
}
