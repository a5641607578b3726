package alerts

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gkchatty/gkchatty-local/internal/findings"
)

// RegisterRoutes mounts the alert channel endpoints. The server nests
// this under the admin-only group.
func RegisterRoutes(r chi.Router, store *Store) {
	h := &handler{store: store}
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.list)
		r.Put("/{name}", h.put)
		r.Delete("/{name}", h.delete)
	})
}

type handler struct {
	store *Store
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	channels, err := h.store.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if channels == nil {
		channels = []Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (h *handler) put(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WebhookURL  string            `json:"webhook_url"`
		MinSeverity findings.Severity `json:"min_severity"`
		Enabled     *bool             `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WebhookURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "webhook_url is required"})
		return
	}

	ch := Channel{
		Name:        chi.URLParam(r, "name"),
		WebhookURL:  req.WebhookURL,
		MinSeverity: req.MinSeverity,
		Enabled:     true,
	}
	if req.Enabled != nil {
		ch.Enabled = *req.Enabled
	}

	if err := h.store.Upsert(r.Context(), ch); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	saved, err := h.store.Get(r.Context(), ch.Name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "channel not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
