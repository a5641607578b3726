package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/llm"
	"github.com/gkchatty/gkchatty-local/internal/namespaces"
	"github.com/gkchatty/gkchatty-local/internal/rag"
)

// RoutesDeps holds what the chat endpoints need.
type RoutesDeps struct {
	Store     *Store
	RAG       *rag.Service
	Audit     *audit.Store
	JWTSecret []byte
	// DefaultNamespace is the shared corpus queried when the caller
	// names no namespace.
	DefaultNamespace string
}

// RegisterRoutes mounts the chat endpoints under /api/chat. Every route
// requires authentication; the WebSocket route does its own token check
// because browsers cannot set headers on WebSocket upgrades.
func RegisterRoutes(r chi.Router, deps RoutesDeps) {
	h := &handler{deps: deps}
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/ws", h.websocket)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(deps.JWTSecret))
			r.Post("/", h.ask)
			r.Get("/sessions", h.listSessions)
			r.Get("/sessions/{id}/messages", h.listMessages)
		})
	})
}

type handler struct {
	deps RoutesDeps
}

type askRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Namespace string `json:"namespace,omitempty"`
}

type askResponse struct {
	SessionID    string       `json:"session_id"`
	Answer       string       `json:"answer"`
	Sources      []rag.Source `json:"sources"`
	Grounded     bool         `json:"grounded"`
	Model        string       `json:"model,omitempty"`
	InputTokens  int          `json:"input_tokens,omitempty"`
	OutputTokens int          `json:"output_tokens,omitempty"`
}

func (h *handler) ask(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	resp, status, err := h.answer(r.Context(), claims, req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// answer runs one question through the pipeline and persists the
// exchange. Shared by the REST and WebSocket paths.
func (h *handler) answer(ctx context.Context, claims *auth.Claims, req askRequest) (*askResponse, int, error) {
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return nil, http.StatusBadRequest, errors.New("message is required")
	}

	ns, err := h.resolveNamespace(claims, req.Namespace)
	if err != nil {
		return nil, http.StatusForbidden, err
	}

	sess, status, err := h.resolveSession(ctx, claims, req.SessionID, question)
	if err != nil {
		return nil, status, err
	}

	history, err := h.history(ctx, sess.ID)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	answer, err := h.deps.RAG.Ask(ctx, ns, question, history)
	if err != nil {
		audit.Record(ctx, h.deps.Audit, audit.Entry{
			Action:   audit.ActionChat,
			Username: claims.Username,
			UserID:   claims.UserID,
			Success:  false,
			Detail:   err.Error(),
		})
		return nil, http.StatusBadGateway, fmt.Errorf("answering: %w", err)
	}

	if err := h.deps.Store.AppendMessage(ctx, &Message{
		SessionID: sess.ID,
		Role:      RoleUser,
		Content:   question,
	}); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if err := h.deps.Store.AppendMessage(ctx, &Message{
		SessionID:    sess.ID,
		Role:         RoleAssistant,
		Content:      answer.Content,
		Sources:      answer.Sources,
		InputTokens:  answer.InputTokens,
		OutputTokens: answer.OutputTokens,
	}); err != nil {
		return nil, http.StatusInternalServerError, err
	}

	audit.Record(ctx, h.deps.Audit, audit.Entry{
		Action:   audit.ActionChat,
		Username: claims.Username,
		UserID:   claims.UserID,
		Success:  true,
		Detail:   "namespace=" + ns,
	})

	return &askResponse{
		SessionID:    sess.ID,
		Answer:       answer.Content,
		Sources:      answer.Sources,
		Grounded:     answer.Grounded,
		Model:        answer.Model,
		InputTokens:  answer.InputTokens,
		OutputTokens: answer.OutputTokens,
	}, http.StatusOK, nil
}

// resolveNamespace enforces per-user isolation: members may query the
// shared corpus or their own namespace, admins anything.
func (h *handler) resolveNamespace(claims *auth.Claims, requested string) (string, error) {
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

func (h *handler) resolveSession(ctx context.Context, claims *auth.Claims, sessionID, question string) (*Session, int, error) {
	if sessionID == "" {
		sess, err := h.deps.Store.CreateSession(ctx, claims.UserID, deriveTitle(question))
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}
		return sess, http.StatusOK, nil
	}

	sess, err := h.deps.Store.GetSession(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, http.StatusNotFound, errors.New("session not found")
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if sess.UserID != claims.UserID && claims.Role != auth.RoleAdmin {
		// Not-found rather than forbidden: do not confirm the session exists.
		return nil, http.StatusNotFound, errors.New("session not found")
	}
	return sess, http.StatusOK, nil
}

// history converts the most recent stored turns into LLM messages.
func (h *handler) history(ctx context.Context, sessionID string) ([]llm.Message, error) {
	stored, err := h.deps.Store.ListMessages(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	if len(stored) > historyLimit {
		stored = stored[len(stored)-historyLimit:]
	}

	history := make([]llm.Message, 0, len(stored))
	for _, msg := range stored {
		role := llm.RoleUser
		if msg.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: msg.Content})
	}
	return history, nil
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	sessions, err := h.deps.Store.ListSessions(r.Context(), claims.UserID, 0)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	id := chi.URLParam(r, "id")

	sess, err := h.deps.Store.GetSession(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sess.UserID != claims.UserID && claims.Role != auth.RoleAdmin {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	messages, err := h.deps.Store.ListMessages(r.Context(), id, 0)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess, "messages": messages})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
