package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/namespaces"
)

// maxUploadBytes caps one multipart upload.
const maxUploadBytes = 25 << 20

// Pipeline indexes uploaded content and unwinds deletions. Satisfied by
// ingest.Pipeline; declared here to avoid an import cycle.
type Pipeline interface {
	IngestUpload(ctx context.Context, userID, namespace, fileName string, content []byte) (*Document, error)
	RemoveDocument(ctx context.Context, id string) error
}

// RoutesDeps holds what the document endpoints need.
type RoutesDeps struct {
	Store     *Store
	Pipeline  Pipeline
	Audit     *audit.Store
	JWTSecret []byte
	// DefaultNamespace is where uploads land when none is named.
	DefaultNamespace string
}

// RegisterRoutes mounts the document endpoints under /api/documents.
func RegisterRoutes(r chi.Router, deps RoutesDeps) {
	h := &docHandler{deps: deps}
	r.Route("/api/documents", func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.JWTSecret))
		r.Get("/", h.list)
		r.Post("/", h.upload)
		r.Get("/{id}", h.get)
		r.Delete("/{id}", h.delete)
	})
}

type docHandler struct {
	deps RoutesDeps
}

// list returns the caller's documents. Members see only their own;
// admins see everything and may narrow with ?user= and ?namespace=.
func (h *docHandler) list(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	filter := Filter{Namespace: r.URL.Query().Get("namespace")}
	if claims.Role == auth.RoleAdmin {
		filter.UserID = r.URL.Query().Get("user")
	} else {
		filter.UserID = claims.UserID
	}

	docs, err := h.deps.Store.List(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if docs == nil {
		docs = []Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *docHandler) upload(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart request"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading upload: " + err.Error()})
		return
	}

	ns, err := h.resolveNamespace(claims, r.FormValue("namespace"))
	if err != nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	}

	doc, err := h.deps.Pipeline.IngestUpload(r.Context(), claims.UserID, ns, header.Filename, content)
	if err != nil {
		audit.Record(r.Context(), h.deps.Audit, audit.Entry{
			Action:   audit.ActionDocumentUpload,
			Username: claims.Username,
			UserID:   claims.UserID,
			Success:  false,
			Detail:   fmt.Sprintf("file=%s: %v", header.Filename, err),
		})
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	audit.Record(r.Context(), h.deps.Audit, audit.Entry{
		Action:   audit.ActionDocumentUpload,
		Username: claims.Username,
		UserID:   claims.UserID,
		Success:  true,
		Detail:   fmt.Sprintf("file=%s namespace=%s", header.Filename, ns),
	})
	writeJSON(w, http.StatusCreated, doc)
}

func (h *docHandler) get(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	doc, status, err := h.fetchOwned(r, claims)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *docHandler) delete(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	doc, status, err := h.fetchOwned(r, claims)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	if err := h.deps.Pipeline.RemoveDocument(r.Context(), doc.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	audit.Record(r.Context(), h.deps.Audit, audit.Entry{
		Action:   audit.ActionDocumentDelete,
		Username: claims.Username,
		UserID:   claims.UserID,
		Success:  true,
		Detail:   fmt.Sprintf("file=%s namespace=%s", doc.OriginalFileName, doc.Namespace),
	})
	w.WriteHeader(http.StatusNoContent)
}

// fetchOwned loads a document and checks ownership. Members get a 404
// for foreign documents so existence is not confirmed.
func (h *docHandler) fetchOwned(r *http.Request, claims *auth.Claims) (*Document, int, error) {
	doc, err := h.deps.Store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		return nil, http.StatusNotFound, errors.New("document not found")
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if doc.UserID != claims.UserID && claims.Role != auth.RoleAdmin {
		return nil, http.StatusNotFound, errors.New("document not found")
	}
	return doc, http.StatusOK, nil
}

// resolveNamespace enforces upload isolation: members may write to the
// shared corpus or their own namespace, admins anywhere.
func (h *docHandler) resolveNamespace(claims *auth.Claims, requested string) (string, error) {
	ns := strings.TrimSpace(requested)
	if ns == "" {
		return h.deps.DefaultNamespace, nil
	}
	if claims.Role == auth.RoleAdmin {
		return ns, nil
	}
	if ns == h.deps.DefaultNamespace || ns == namespaces.ForUser(claims.UserID) {
		return ns, nil
	}
	return "", fmt.Errorf("namespace %q is not accessible", ns)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
