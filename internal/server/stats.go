package server

import (
	"net/http"

	"github.com/gkchatty/gkchatty-local/internal/llm"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

// statsResponse is the admin overview: who and what the deployment
// holds, and what the LLM usage has cost so far.
type statsResponse struct {
	Users         int            `json:"users"`
	Documents     int            `json:"documents"`
	DocsByStatus  map[string]int `json:"documents_by_status"`
	Sessions      int            `json:"chat_sessions"`
	OpenFindings  int            `json:"open_findings"`
	Vectors       vectordb.Stats `json:"vectors"`
	InputTokens   int            `json:"input_tokens"`
	OutputTokens  int            `json:"output_tokens"`
	EstimatedCost float64        `json:"estimated_cost_usd"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := statsResponse{DocsByStatus: map[string]int{}}

	var err error
	if resp.Users, err = s.deps.Users.Count(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if resp.Documents, err = s.deps.Docs.Count(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	byStatus, err := s.deps.Docs.CountByStatus(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	for status, n := range byStatus {
		resp.DocsByStatus[string(status)] = n
	}
	if resp.Sessions, err = s.deps.Chat.CountSessions(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if s.deps.Findings != nil {
		if resp.OpenFindings, err = s.deps.Findings.CountOpen(ctx); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	if s.deps.Vectors != nil {
		resp.Vectors = s.deps.Vectors.Stats()
	}

	resp.InputTokens, resp.OutputTokens, err = s.deps.Chat.TokenTotals(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	resp.EstimatedCost = llm.EstimateCost(s.deps.Config.Model, resp.InputTokens, resp.OutputTokens)

	writeJSON(w, http.StatusOK, resp)
}
