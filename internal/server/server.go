// Package server wires every feature into one chi router and runs the
// HTTP side of gkchatty: auth, chat, documents, the admin surface and
// the dashboard.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/gkchatty/gkchatty-local/internal/alerts"
	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/chat"
	"github.com/gkchatty/gkchatty-local/internal/config"
	"github.com/gkchatty/gkchatty-local/internal/db"
	"github.com/gkchatty/gkchatty-local/internal/diag"
	"github.com/gkchatty/gkchatty-local/internal/documents"
	"github.com/gkchatty/gkchatty-local/internal/findings"
	"github.com/gkchatty/gkchatty-local/internal/logger"
	"github.com/gkchatty/gkchatty-local/internal/namespaces"
	"github.com/gkchatty/gkchatty-local/internal/rag"
	"github.com/gkchatty/gkchatty-local/internal/ratelimit"
	"github.com/gkchatty/gkchatty-local/internal/storage"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

// Deps carries everything the server mounts. Dashboard is optional.
type Deps struct {
	Config *config.Config
	Logger zerolog.Logger

	DB       *db.DB
	Users    *auth.Store
	Audit    *audit.Store
	Docs     *documents.Store
	Vectors  vectordb.VectorStore
	Objects  storage.ObjectStore
	RAG      *rag.Service
	Chat     *chat.Store
	Registry *namespaces.Store
	Findings *findings.Store
	Alerts   *alerts.Store

	Pipeline   documents.Pipeline
	Reindex    namespaces.ReindexFunc
	Purge      namespaces.PurgeFunc
	Dispatcher *alerts.Dispatcher

	// Dashboard mounts the ops view (index page plus its data
	// endpoints) when set.
	Dashboard interface{ RegisterRoutes(chi.Router) }
}

// Server is the long-running HTTP process.
type Server struct {
	deps       Deps
	router     chi.Router
	httpServer *http.Server
}

// New builds the router and returns a ready-to-start server.
func New(deps Deps) *Server {
	s := &Server{deps: deps}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	cfg := s.deps.Config
	secret := []byte(cfg.Server.JWTSecret)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(corsOpts.AllowedOrigins) == 0 {
		corsOpts.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(corsOpts))

	if cfg.Limits.Enabled {
		r.Use(ratelimit.Middleware(ratelimit.NewLimiter(nil), cfg.Limits, secret))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	auth.RegisterRoutes(r, s.deps.Users, s.deps.Audit, auth.RouteConfig{
		JWTSecret:  secret,
		TokenTTL:   time.Duration(cfg.Server.TokenTTLHours) * time.Hour,
		OpenSignup: cfg.Server.OpenSignup,
	})

	chat.RegisterRoutes(r, chat.RoutesDeps{
		Store:            s.deps.Chat,
		RAG:              s.deps.RAG,
		Audit:            s.deps.Audit,
		JWTSecret:        secret,
		DefaultNamespace: cfg.Namespace,
	})

	documents.RegisterRoutes(r, documents.RoutesDeps{
		Store:            s.deps.Docs,
		Pipeline:         s.deps.Pipeline,
		Audit:            s.deps.Audit,
		JWTSecret:        secret,
		DefaultNamespace: cfg.Namespace,
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(auth.RequireAuth(secret))
		r.Use(auth.RequireAdmin)

		audit.RegisterRoutes(r, s.deps.Audit, func(req *http.Request) (string, string) {
			claims := auth.ClaimsFromContext(req.Context())
			if claims == nil {
				return "", ""
			}
			return claims.Username, claims.UserID
		})

		namespaces.RegisterRoutes(r, namespaces.RoutesDeps{
			Store:   s.deps.Registry,
			Vectors: s.deps.Vectors,
			Reindex: s.deps.Reindex,
			Purge:   s.deps.Purge,
			Audit:   s.deps.Audit,
		})

		findings.RegisterRoutes(r, s.deps.Findings)
		alerts.RegisterRoutes(r, s.deps.Alerts)

		r.Get("/stats", s.handleStats)
		r.Post("/diagnostics", s.handleDiagnostics)
	})

	if s.deps.Dashboard != nil {
		s.deps.Dashboard.RegisterRoutes(r)
	}

	return r
}

// Router exposes the router for tests and the dashboard's WebSocket.
func (s *Server) Router() chi.Router { return s.router }

// Start listens on the configured host and port until Shutdown.
func (s *Server) Start() error {
	cfg := s.deps.Config
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return logger.WithContext(context.Background(), s.deps.Logger)
		},
	}

	s.deps.Logger.Info().Str("addr", addr).Msg("server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// handleDiagnostics runs checks server-side. The api and ratelimit
// probes are skipped; probing yourself over loopback says little.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Checks []string `json:"checks"`
	}
	// An empty body means all local checks.
	_ = decodeJSONBody(r, &req)
	if len(req.Checks) == 0 {
		req.Checks = []string{"db", "vector", "metadata", "storage"}
	}

	runner := diag.NewRunner(&diag.Env{
		Config:   s.deps.Config,
		DB:       s.deps.DB,
		Docs:     s.deps.Docs,
		Vectors:  s.deps.Vectors,
		Objects:  s.deps.Objects,
		Registry: s.deps.Registry,
	})
	runner.Findings = s.deps.Findings
	runner.Alerts = s.deps.Dispatcher
	runner.Audit = s.deps.Audit
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		runner.Actor = claims.Username
	}

	report, err := runner.Run(r.Context(), req.Checks)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if _, err := report.Persist(s.deps.Config.ReportsDir()); err != nil {
		wlog := logger.FromContext(r.Context())
		wlog.Warn().Err(err).Msg("persisting diagnostic report")
	}
	writeJSON(w, http.StatusOK, report)
}
