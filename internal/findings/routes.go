package findings

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gkchatty/gkchatty-local/internal/auth"
)

// RegisterRoutes mounts the findings endpoints on the given router. The
// server nests this under the admin-only group.
func RegisterRoutes(r chi.Router, store *Store) {
	h := &handler{store: store}
	r.Route("/findings", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
	})
}

type handler struct {
	store *Store
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status:    Status(q.Get("status")),
		Severity:  Severity(q.Get("severity")),
		CheckName: q.Get("check"),
		Source:    Source(q.Get("source")),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	found, err := h.store.List(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if found == nil {
		found = []Finding{}
	}
	open, err := h.store.CountOpen(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": found, "open": open})
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "finding not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// create lets an operator file a finding by hand.
func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string   `json:"title"`
		Detail   string   `json:"detail"`
		Severity Severity `json:"severity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.Severity != "" && !validSeverity(req.Severity) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid severity"})
		return
	}

	f, err := h.store.Create(r.Context(), Finding{
		Title:    req.Title,
		Detail:   req.Detail,
		Severity: req.Severity,
		Source:   SourceUser,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be open, acknowledged or resolved"})
		return
	}

	id := chi.URLParam(r, "id")
	claims := auth.ClaimsFromContext(r.Context())
	resolvedBy := ""
	if claims != nil {
		resolvedBy = claims.Username
	}

	err := h.store.SetStatus(r.Context(), id, req.Status, resolvedBy)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "finding not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	f, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func validStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusAcknowledged, StatusResolved:
		return true
	}
	return false
}

func validSeverity(s Severity) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
