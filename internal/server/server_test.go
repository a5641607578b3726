package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gkchatty/gkchatty-local/internal/alerts"
	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/chat"
	"github.com/gkchatty/gkchatty-local/internal/config"
	"github.com/gkchatty/gkchatty-local/internal/db"
	"github.com/gkchatty/gkchatty-local/internal/documents"
	"github.com/gkchatty/gkchatty-local/internal/findings"
	"github.com/gkchatty/gkchatty-local/internal/llm"
	"github.com/gkchatty/gkchatty-local/internal/namespaces"
	"github.com/gkchatty/gkchatty-local/internal/rag"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

type nullVectors struct{}

func (nullVectors) Upsert(context.Context, string, []vectordb.Document) error { return nil }
func (nullVectors) Search(context.Context, string, string, int, *vectordb.SearchFilter) ([]vectordb.SearchResult, error) {
	return []vectordb.SearchResult{{
		Document: vectordb.Document{
			ID:       "d1:0",
			Content:  "The deploy runbook lives in the wiki.",
			Metadata: vectordb.Metadata{DocumentID: "d1", FileName: "runbook.md", TotalChunks: 1},
		},
		Similarity: 0.9,
	}}, nil
}
func (nullVectors) GetByDocumentID(context.Context, string, string) ([]vectordb.Document, error) {
	return nil, nil
}
func (nullVectors) DeleteByDocumentID(context.Context, string, string) error { return nil }
func (nullVectors) DeleteNamespace(context.Context, string) error            { return nil }
func (nullVectors) Namespaces() []string                                     { return []string{"shared"} }
func (nullVectors) Count(string) int                                         { return 1 }
func (nullVectors) Stats() vectordb.Stats {
	return vectordb.Stats{TotalVectors: 1, Namespaces: []vectordb.NamespaceStats{{Name: "shared", VectorCount: 1}}}
}

type nullProvider struct{}

func (nullProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: "In the wiki.", InputTokens: 50, OutputTokens: 5, Model: "stub"}, nil
}
func (nullProvider) Name() string { return "stub" }

type nullPipeline struct{ docs *documents.Store }

func (p nullPipeline) IngestUpload(ctx context.Context, userID, namespace, fileName string, content []byte) (*documents.Document, error) {
	doc := &documents.Document{UserID: userID, OriginalFileName: fileName, Namespace: namespace, SizeBytes: int64(len(content))}
	return doc, p.docs.Create(ctx, doc)
}
func (p nullPipeline) RemoveDocument(ctx context.Context, id string) error {
	return p.docs.Delete(ctx, id)
}

func testServer(t *testing.T, mutate func(cfg *config.Config)) (*Server, *auth.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Server.JWTSecret = "test-secret"
	cfg.Server.OpenSignup = true
	cfg.Limits.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	users := auth.NewStore(database)
	docs := documents.NewStore(database)
	vectors := nullVectors{}
	svc := rag.NewService(vectors, nullProvider{}, "stub", nil, rag.RetrievalOptions{})

	srv := New(Deps{
		Config:   cfg,
		Logger:   zerolog.Nop(),
		DB:       database,
		Users:    users,
		Audit:    audit.NewStore(database),
		Docs:     docs,
		Vectors:  vectors,
		RAG:      svc,
		Chat:     chat.NewStore(database),
		Registry: namespaces.NewStore(database),
		Findings: findings.NewStore(database),
		Alerts:   alerts.NewStore(database),
		Pipeline: nullPipeline{docs: docs},
		Reindex:  func(context.Context, string) error { return nil },
		Purge:    func(context.Context, string) error { return nil },
	})
	return srv, users
}

func do(srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func loginAs(t *testing.T, srv *Server, users *auth.Store, username string, role auth.Role) string {
	t.Helper()
	if _, err := users.Create(context.Background(), username, "", "password-123", role); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	rec := do(srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username, "password": "password-123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding login: %v", err)
	}
	return resp.Token
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t, nil)
	rec := do(srv, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := testServer(t, func(cfg *config.Config) {
		cfg.Server.CORSOrigins = []string{"*"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected a CORS Allow-Origin header")
	}
}

func TestChatRoundTrip(t *testing.T) {
	srv, users := testServer(t, nil)
	token := loginAs(t, srv, users, "alice", auth.RoleMember)

	rec := do(srv, http.MethodPost, "/api/chat/", token, map[string]string{
		"message": "where is the deploy runbook?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Answer  string `json:"answer"`
		Sources []any  `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Answer == "" || len(resp.Sources) == 0 {
		t.Errorf("response = %+v", resp)
	}
}

func TestAdminRoutesRejectMembers(t *testing.T) {
	srv, users := testServer(t, nil)
	memberToken := loginAs(t, srv, users, "alice", auth.RoleMember)

	for _, path := range []string{
		"/api/admin/stats",
		"/api/admin/audit/",
		"/api/admin/findings/",
		"/api/admin/alerts/",
		"/api/admin/namespaces/",
	} {
		rec := do(srv, http.MethodGet, path, memberToken, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s status = %d, want 403", path, rec.Code)
		}
	}
}

func TestAdminStats(t *testing.T) {
	srv, users := testServer(t, nil)
	adminToken := loginAs(t, srv, users, "root", auth.RoleAdmin)
	memberToken := loginAs(t, srv, users, "alice", auth.RoleMember)

	// Generate some token usage.
	rec := do(srv, http.MethodPost, "/api/chat/", memberToken, map[string]string{"message": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}

	rec = do(srv, http.MethodGet, "/api/admin/stats", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, body %s", rec.Code, rec.Body.String())
	}
	var stats struct {
		Users        int `json:"users"`
		Sessions     int `json:"chat_sessions"`
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		Vectors      struct {
			TotalVectors int `json:"total_vectors"`
		} `json:"vectors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.Users != 2 || stats.Sessions != 1 || stats.InputTokens != 50 || stats.OutputTokens != 5 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Vectors.TotalVectors != 1 {
		t.Errorf("vector stats = %+v", stats.Vectors)
	}
}

func TestServerSideDiagnostics(t *testing.T) {
	srv, users := testServer(t, nil)
	adminToken := loginAs(t, srv, users, "root", auth.RoleAdmin)

	rec := do(srv, http.MethodPost, "/api/admin/diagnostics", adminToken, map[string]any{
		"checks": []string{"db"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var report struct {
		Results []struct {
			Check  string `json:"check"`
			Status string `json:"status"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Check != "db" || report.Results[0].Status != "ok" {
		t.Errorf("report = %+v", report)
	}
}

func TestRateLimitOnAuthGroup(t *testing.T) {
	srv, _ := testServer(t, func(cfg *config.Config) {
		cfg.Limits.Enabled = true
		cfg.Limits.Auth = config.RuleConfig{PerMinute: 60, Burst: 2}
	})

	var last *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		last = do(srv, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "nobody", "password": "wrong",
		})
	}
	if last.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}
