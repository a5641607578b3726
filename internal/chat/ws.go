package chat

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/logger"
)

var upgrader = websocket.Upgrader{
	// CORS already ran on the router; same-host dashboards and local
	// tools are the expected clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is both the inbound and outbound WebSocket message shape.
// Inbound frames carry message/session_id/namespace; outbound frames
// mirror askResponse plus a type discriminator.
type wsFrame struct {
	Type      string `json:"type,omitempty"` // outbound: "answer" or "error"
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Namespace string `json:"namespace,omitempty"`

	Answer *askResponse `json:"answer,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// websocket handles the JSON-frame chat channel. The token comes from
// the Authorization header when present, else a ?token= query parameter.
func (h *handler) websocket(w http.ResponseWriter, r *http.Request) {
	claims, err := h.wsClaims(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing token"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		wlog := logger.FromContext(r.Context())
		wlog.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := logger.FromContext(r.Context())
	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		resp, _, err := h.answer(r.Context(), claims, askRequest{
			SessionID: frame.SessionID,
			Message:   frame.Message,
			Namespace: frame.Namespace,
		})
		if err != nil {
			send(conn, wsFrame{Type: "error", SessionID: frame.SessionID, Error: err.Error()})
			continue
		}
		send(conn, wsFrame{Type: "answer", SessionID: resp.SessionID, Answer: resp})
	}
}

func (h *handler) wsClaims(r *http.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		if t, ok := strings.CutPrefix(header, "Bearer "); ok {
			token = t
		}
	}
	return auth.ValidateToken(token, h.deps.JWTSecret)
}

func send(conn *websocket.Conn, frame wsFrame) {
	// A failed write surfaces as a read error on the next loop turn.
	_ = conn.WriteJSON(frame)
}
