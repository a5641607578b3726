package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gkchatty/gkchatty-local/internal/audit"
)

// RouteConfig carries the settings the auth endpoints need from the server.
type RouteConfig struct {
	JWTSecret  []byte
	TokenTTL   time.Duration
	OpenSignup bool
}

// RegisterRoutes mounts auth endpoints under /api/auth on the given router.
func RegisterRoutes(r chi.Router, store *Store, auditor *audit.Store, cfg RouteConfig) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", handleLogin(store, auditor, cfg))
		r.Post("/register", handleRegister(store, auditor, cfg))

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(cfg.JWTSecret))
			r.Get("/me", handleMe(store))
		})
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func handleLogin(store *Store, auditor *audit.Store, cfg RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		user, err := store.Authenticate(r.Context(), req.Username, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			audit.Record(r.Context(), auditor, audit.Entry{
				Action:   audit.ActionLogin,
				Username: req.Username,
				Success:  false,
				IP:       clientIP(r),
				Detail:   "invalid credentials",
			})
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		token, err := GenerateToken(user, cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if err := store.TouchLogin(r.Context(), user.ID); err == nil {
			now := time.Now().UTC()
			user.LastLoginAt = &now
		}

		audit.Record(r.Context(), auditor, audit.Entry{
			Action:   audit.ActionLogin,
			Username: user.Username,
			UserID:   user.ID,
			Success:  true,
			IP:       clientIP(r),
		})

		writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func handleRegister(store *Store, auditor *audit.Store, cfg RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.OpenSignup {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "signup is disabled"})
			return
		}

		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Username) == "" {
			http.Error(w, "username is required", http.StatusBadRequest)
			return
		}
		if len(req.Password) < 8 {
			http.Error(w, "password must be at least 8 characters", http.StatusBadRequest)
			return
		}

		user, err := store.Create(r.Context(), req.Username, req.Email, req.Password, RoleMember)
		if errors.Is(err, ErrUsernameTaken) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "username already taken"})
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		token, err := GenerateToken(user, cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		audit.Record(r.Context(), auditor, audit.Entry{
			Action:   audit.ActionRegister,
			Username: user.Username,
			UserID:   user.ID,
			Success:  true,
			IP:       clientIP(r),
		})

		writeJSON(w, http.StatusCreated, loginResponse{Token: token, User: user})
	}
}

func handleMe(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}

		user, err := store.GetByID(r.Context(), claims.UserID)
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "account no longer exists"})
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

// clientIP extracts the originating address, honoring X-Forwarded-For when a
// proxy sits in front of the server.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
