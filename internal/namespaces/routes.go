package namespaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

// ReindexFunc rebuilds one namespace's vectors from stored originals.
type ReindexFunc func(ctx context.Context, namespace string) error

// PurgeFunc removes a namespace's documents, stored originals, and
// vectors.
type PurgeFunc func(ctx context.Context, namespace string) error

// RoutesDeps holds what the namespace admin endpoints need.
type RoutesDeps struct {
	Store   *Store
	Vectors vectordb.VectorStore
	Reindex ReindexFunc
	Purge   PurgeFunc
	Audit   *audit.Store
}

// RegisterRoutes mounts namespace management endpoints under
// /namespaces. The server nests this under the admin route group.
func RegisterRoutes(r chi.Router, deps RoutesDeps) {
	h := &routeHandler{deps: deps}
	r.Route("/namespaces", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{name}", h.get)
		r.Post("/{name}/reindex", h.reindex)
		r.Delete("/{name}", h.remove)
	})
}

type routeHandler struct {
	deps RoutesDeps
}

func (h *routeHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Store.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if list == nil {
		list = []Namespace{}
	}
	writeJSON(w, http.StatusOK, list)
}

type createRequest struct {
	Name        string `json:"name"`
	Environment string `json:"environment,omitempty"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
}

func (h *routeHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if strings.ContainsAny(req.Name, " \t/\\") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name must not contain spaces or slashes"})
		return
	}

	env := EnvDev
	if req.Environment != "" {
		parsed, ok := ParseEnvironment(req.Environment)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "environment must be dev, staging, or prod"})
			return
		}
		env = parsed
	}

	ctx := r.Context()
	if _, err := h.deps.Store.Get(ctx, req.Name); err == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "namespace " + req.Name + " already registered"})
		return
	}

	ns := &Namespace{
		Name:        req.Name,
		Owner:       req.Owner,
		Environment: env,
		Description: req.Description,
	}
	if err := h.deps.Store.Create(ctx, ns); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.record(r, audit.ActionNamespaceCreate, req.Name, true)
	writeJSON(w, http.StatusCreated, ns)
}

func (h *routeHandler) get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	ns, err := h.deps.Store.Get(r.Context(), name)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "namespace " + name + " not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// Report the live count; the stored one refreshes on index runs.
	if h.deps.Vectors != nil {
		ns.VectorCount = h.deps.Vectors.Count(name)
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *routeHandler) reindex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ctx := r.Context()

	if _, err := h.deps.Store.Get(ctx, name); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "namespace " + name + " not found"})
		return
	}
	if h.deps.Reindex == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reindexing is not available"})
		return
	}

	if err := h.deps.Reindex(ctx, name); err != nil {
		h.record(r, audit.ActionNamespaceReindex, name+": "+err.Error(), false)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reindexing: " + err.Error()})
		return
	}

	h.record(r, audit.ActionNamespaceReindex, name, true)

	ns, err := h.deps.Store.Get(ctx, name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *routeHandler) remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ctx := r.Context()

	if _, err := h.deps.Store.Get(ctx, name); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "namespace " + name + " not found"})
		return
	}

	if h.deps.Purge != nil {
		if err := h.deps.Purge(ctx, name); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "purging namespace: " + err.Error()})
			return
		}
	}
	if err := h.deps.Store.Delete(ctx, name); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.record(r, audit.ActionNamespaceDelete, name, true)
	writeJSON(w, http.StatusOK, map[string]string{"message": "namespace " + name + " removed"})
}

func (h *routeHandler) record(r *http.Request, action audit.Action, detail string, success bool) {
	entry := audit.Entry{Action: action, Detail: detail, Success: success}
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		entry.Username = claims.Username
		entry.UserID = claims.UserID
	}
	audit.Record(r.Context(), h.deps.Audit, entry)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
