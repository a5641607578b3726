// Package dashboard serves the single-page ops view: a chat box over
// the WebSocket API, live deployment stats, recent audit entries and
// the latest diagnostic report.
package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/chat"
	"github.com/gkchatty/gkchatty-local/internal/documents"
	"github.com/gkchatty/gkchatty-local/internal/findings"
	"github.com/gkchatty/gkchatty-local/internal/namespaces"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

// Deps holds the stores the dashboard reads. Everything is read-only
// here; mutations go through the API.
type Deps struct {
	Docs     *documents.Store
	Vectors  vectordb.VectorStore
	Registry *namespaces.Store
	Findings *findings.Store
	Audit    *audit.Store
	Chat     *chat.Store
	// ReportsDir holds persisted diagnostic reports.
	ReportsDir string
}

// Dashboard renders the ops view.
type Dashboard struct {
	deps Deps
}

// New creates a Dashboard.
func New(deps Deps) *Dashboard {
	return &Dashboard{deps: deps}
}

// RegisterRoutes mounts the dashboard onto the given router. The data
// endpoints back the page's polling; authentication for chat happens
// over the WebSocket token.
func (d *Dashboard) RegisterRoutes(r chi.Router) {
	r.Get("/", d.ServeIndex)
	r.Get("/api/dashboard/stats", d.handleStats)
	r.Get("/api/dashboard/recent", d.handleRecent)
	r.Get("/api/dashboard/report", d.handleReport)
}

// statsResponse is the live counters block.
type statsResponse struct {
	Documents    int `json:"documents"`
	Vectors      int `json:"vectors"`
	Namespaces   int `json:"namespaces"`
	OpenFindings int `json:"open_findings"`
	Sessions     int `json:"sessions"`
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var resp statsResponse
	var err error

	if d.deps.Docs != nil {
		if resp.Documents, err = d.deps.Docs.Count(ctx); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	if d.deps.Vectors != nil {
		stats := d.deps.Vectors.Stats()
		resp.Vectors = stats.TotalVectors
		resp.Namespaces = len(stats.Namespaces)
	}
	if d.deps.Findings != nil {
		if resp.OpenFindings, err = d.deps.Findings.CountOpen(ctx); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	if d.deps.Chat != nil {
		if resp.Sessions, err = d.deps.Chat.CountSessions(ctx); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// recentResponse is the recent-activity block.
type recentResponse struct {
	Audit    []audit.Entry      `json:"audit"`
	Findings []findings.Finding `json:"findings"`
}

func (d *Dashboard) handleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := recentResponse{Audit: []audit.Entry{}, Findings: []findings.Finding{}}

	if d.deps.Audit != nil {
		entries, err := d.deps.Audit.Query(ctx, audit.QueryFilter{Limit: 10})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if entries != nil {
			resp.Audit = entries
		}
	}
	if d.deps.Findings != nil {
		open, err := d.deps.Findings.List(ctx, findings.ListFilter{Status: findings.StatusOpen, Limit: 10})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if open != nil {
			resp.Findings = open
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
