package documents

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/db"
)

// stubPipeline records documents without embedding anything.
type stubPipeline struct {
	store   *Store
	removed []string
}

func (p *stubPipeline) IngestUpload(ctx context.Context, userID, namespace, fileName string, content []byte) (*Document, error) {
	doc := &Document{
		UserID:           userID,
		OriginalFileName: fileName,
		SourceType:       SourceMarkdown,
		SizeBytes:        int64(len(content)),
		Namespace:        namespace,
	}
	if err := p.store.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *stubPipeline) RemoveDocument(ctx context.Context, id string) error {
	p.removed = append(p.removed, id)
	return p.store.Delete(ctx, id)
}

type routesFixture struct {
	router   chi.Router
	store    *Store
	users    *auth.Store
	pipeline *stubPipeline
}

func setupRoutes(t *testing.T) *routesFixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := NewStore(database)
	pipeline := &stubPipeline{store: store}
	router := chi.NewRouter()
	RegisterRoutes(router, RoutesDeps{
		Store:            store,
		Pipeline:         pipeline,
		Audit:            audit.NewStore(database),
		JWTSecret:        routesTestSecret,
		DefaultNamespace: "shared",
	})

	return &routesFixture{
		router:   router,
		store:    store,
		users:    auth.NewStore(database),
		pipeline: pipeline,
	}
}

var routesTestSecret = []byte("test-secret")

func (f *routesFixture) login(t *testing.T, username string, role auth.Role) (*auth.User, string) {
	t.Helper()
	user, err := f.users.Create(context.Background(), username, "", "password-123", role)
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	token, err := auth.GenerateToken(user, routesTestSecret, time.Hour)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return user, token
}

func (f *routesFixture) upload(t *testing.T, token, fileName, namespace, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	part.Write([]byte(content))
	if namespace != "" {
		writer.WriteField("namespace", namespace)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *routesFixture) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestUploadLandsInSharedByDefault(t *testing.T) {
	f := setupRoutes(t)
	user, token := f.login(t, "alice", auth.RoleMember)

	rec := f.upload(t, token, "guide.md", "", "# Guide")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	docs, err := f.store.List(context.Background(), Filter{UserID: user.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 1 || docs[0].Namespace != "shared" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestUploadRejectsForeignNamespace(t *testing.T) {
	f := setupRoutes(t)
	_, token := f.login(t, "alice", auth.RoleMember)

	rec := f.upload(t, token, "guide.md", "user-someone-else", "# Guide")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestUploadToOwnNamespace(t *testing.T) {
	f := setupRoutes(t)
	user, token := f.login(t, "alice", auth.RoleMember)

	rec := f.upload(t, token, "notes.md", "user-"+user.ID, "private notes")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestListIsScopedToOwner(t *testing.T) {
	f := setupRoutes(t)
	_, aliceToken := f.login(t, "alice", auth.RoleMember)
	_, bobToken := f.login(t, "bob", auth.RoleMember)

	f.upload(t, aliceToken, "alice.md", "", "a")
	f.upload(t, bobToken, "bob.md", "", "b")

	rec := f.do(t, http.MethodGet, "/api/documents/", aliceToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !bytes.Contains([]byte(body), []byte("alice.md")) || bytes.Contains([]byte(body), []byte("bob.md")) {
		t.Errorf("alice's list = %s", body)
	}
}

func TestAdminSeesAllDocuments(t *testing.T) {
	f := setupRoutes(t)
	_, aliceToken := f.login(t, "alice", auth.RoleMember)
	_, adminToken := f.login(t, "root", auth.RoleAdmin)

	f.upload(t, aliceToken, "alice.md", "", "a")

	rec := f.do(t, http.MethodGet, "/api/documents/", adminToken)
	if !bytes.Contains(rec.Body.Bytes(), []byte("alice.md")) {
		t.Errorf("admin list missing alice.md: %s", rec.Body.String())
	}
}

func TestDeleteForeignDocumentIs404(t *testing.T) {
	f := setupRoutes(t)
	alice, aliceToken := f.login(t, "alice", auth.RoleMember)
	_, bobToken := f.login(t, "bob", auth.RoleMember)

	f.upload(t, aliceToken, "alice.md", "", "a")
	docs, _ := f.store.List(context.Background(), Filter{UserID: alice.ID})
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}

	rec := f.do(t, http.MethodDelete, "/api/documents/"+docs[0].ID, bobToken)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	// The owner can delete it.
	rec = f.do(t, http.MethodDelete, "/api/documents/"+docs[0].ID, aliceToken)
	if rec.Code != http.StatusNoContent {
		t.Errorf("owner delete status = %d, want 204", rec.Code)
	}
	if len(f.pipeline.removed) != 1 {
		t.Errorf("pipeline removals = %d, want 1", len(f.pipeline.removed))
	}
}

func TestDocumentsRequireAuth(t *testing.T) {
	f := setupRoutes(t)
	rec := f.do(t, http.MethodGet, "/api/documents/", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
