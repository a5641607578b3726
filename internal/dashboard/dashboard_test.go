package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/chat"
	"github.com/gkchatty/gkchatty-local/internal/db"
	"github.com/gkchatty/gkchatty-local/internal/documents"
	"github.com/gkchatty/gkchatty-local/internal/findings"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

type stubVectors struct{}

func (stubVectors) Upsert(context.Context, string, []vectordb.Document) error { return nil }
func (stubVectors) Search(context.Context, string, string, int, *vectordb.SearchFilter) ([]vectordb.SearchResult, error) {
	return nil, nil
}
func (stubVectors) GetByDocumentID(context.Context, string, string) ([]vectordb.Document, error) {
	return nil, nil
}
func (stubVectors) DeleteByDocumentID(context.Context, string, string) error { return nil }
func (stubVectors) DeleteNamespace(context.Context, string) error            { return nil }
func (stubVectors) Namespaces() []string                                     { return []string{"shared", "user-u1"} }
func (stubVectors) Count(string) int                                         { return 3 }
func (stubVectors) Stats() vectordb.Stats {
	return vectordb.Stats{
		TotalVectors: 6,
		Namespaces: []vectordb.NamespaceStats{
			{Name: "shared", VectorCount: 3},
			{Name: "user-u1", VectorCount: 3},
		},
	}
}

type fixture struct {
	dash    *Dashboard
	router  chi.Router
	db      *db.DB
	reports string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	reports := t.TempDir()
	dash := New(Deps{
		Docs:       documents.NewStore(database),
		Vectors:    stubVectors{},
		Findings:   findings.NewStore(database),
		Audit:      audit.NewStore(database),
		Chat:       chat.NewStore(database),
		ReportsDir: reports,
	})
	router := chi.NewRouter()
	dash.RegisterRoutes(router)
	return &fixture{dash: dash, router: router, db: database, reports: reports}
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decoding %s: %v", path, err)
		}
	}
	return rec.Code
}

func TestIndexServesHTML(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, want := range []string{"/api/chat/ws", "/api/dashboard/stats", "chat-form"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestStatsCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	usersStore := auth.NewStore(f.db)
	user, err := usersStore.Create(ctx, "alice", "", "password-123", auth.RoleMember)
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	docs := documents.NewStore(f.db)
	if err := docs.Create(ctx, &documents.Document{UserID: user.ID, OriginalFileName: "a.md", Namespace: "shared"}); err != nil {
		t.Fatalf("creating document: %v", err)
	}
	fStore := findings.NewStore(f.db)
	if _, err := fStore.Create(ctx, findings.Finding{CheckName: "db", Title: "slow queries"}); err != nil {
		t.Fatalf("creating finding: %v", err)
	}

	var stats struct {
		Documents    int `json:"documents"`
		Vectors      int `json:"vectors"`
		Namespaces   int `json:"namespaces"`
		OpenFindings int `json:"open_findings"`
		Sessions     int `json:"sessions"`
	}
	if code := f.get(t, "/api/dashboard/stats", &stats); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if stats.Documents != 1 || stats.Vectors != 6 || stats.Namespaces != 2 || stats.OpenFindings != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRecentActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auditStore := audit.NewStore(f.db)
	if err := auditStore.Log(ctx, audit.Entry{Action: audit.ActionLogin, Username: "alice", Success: true}); err != nil {
		t.Fatalf("logging entry: %v", err)
	}
	fStore := findings.NewStore(f.db)
	if _, err := fStore.Create(ctx, findings.Finding{
		CheckName: "storage", Severity: findings.SeverityCritical, Title: "probe object lost",
	}); err != nil {
		t.Fatalf("creating finding: %v", err)
	}

	var recent struct {
		Audit []struct {
			Action   string `json:"action"`
			Username string `json:"username"`
		} `json:"audit"`
		Findings []struct {
			Severity string `json:"severity"`
			Title    string `json:"title"`
		} `json:"findings"`
	}
	if code := f.get(t, "/api/dashboard/recent", &recent); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(recent.Audit) != 1 || recent.Audit[0].Action != "login" {
		t.Errorf("audit = %+v", recent.Audit)
	}
	if len(recent.Findings) != 1 || recent.Findings[0].Severity != "critical" {
		t.Errorf("findings = %+v", recent.Findings)
	}
}

func TestReportRendersMarkdown(t *testing.T) {
	f := newFixture(t)

	content := "# Diagnostic Report\n\n| Check | Status | Latency |\n|---|---|---|\n| db | ok | 1ms |\n"
	path := filepath.Join(f.reports, "diag-20260102-030405.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing report: %v", err)
	}

	var resp struct {
		HTML string `json:"html"`
		Path string `json:"path"`
	}
	if code := f.get(t, "/api/dashboard/report", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Path != path {
		t.Errorf("path = %q, want %q", resp.Path, path)
	}
	if !strings.Contains(resp.HTML, "<table>") || !strings.Contains(resp.HTML, "Diagnostic Report") {
		t.Errorf("html = %q", resp.HTML)
	}
}

func TestReportEmptyWhenNone(t *testing.T) {
	f := newFixture(t)

	var resp struct {
		HTML string `json:"html"`
		Path string `json:"path"`
	}
	if code := f.get(t, "/api/dashboard/report", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.HTML != "" || resp.Path != "" {
		t.Errorf("resp = %+v, want empty", resp)
	}
}
