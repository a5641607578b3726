package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gkchatty/gkchatty-local/internal/alerts"
	"github.com/gkchatty/gkchatty-local/internal/dashboard"
	"github.com/gkchatty/gkchatty-local/internal/logger"
	"github.com/gkchatty/gkchatty-local/internal/server"
)

var (
	serverHost string
	serverPort int
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the GKChatty HTTP API and dashboard",
	Long: `Starts the long-running service: REST API, WebSocket chat, the admin
surface and the ops dashboard, all on one port.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if serverHost != "" {
			rt.cfg.Server.Host = serverHost
		}
		if serverPort != 0 {
			rt.cfg.Server.Port = serverPort
		}
		if rt.cfg.Server.JWTSecret == "" {
			return errors.New("server.jwt_secret is not set; add it to the config or set GKCHATTY_SERVER__JWT_SECRET")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := rt.openVectors(); err != nil {
			return err
		}
		if err := rt.openObjects(ctx); err != nil {
			return err
		}

		svc, err := rt.ragService(true)
		if err != nil {
			return err
		}
		pipe := rt.pipeline()

		log := logger.NewServer(verbose)
		dispatcher := alerts.NewDispatcher(rt.alerts, rt.cfg.Alerts)

		dash := dashboard.New(dashboard.Deps{
			Docs:       rt.docs,
			Vectors:    rt.vectors,
			Registry:   rt.registry,
			Findings:   rt.findings,
			Audit:      rt.auditor,
			Chat:       rt.chats,
			ReportsDir: rt.cfg.ReportsDir(),
		})

		srv := server.New(server.Deps{
			Config:   rt.cfg,
			Logger:   log,
			DB:       rt.database,
			Users:    rt.users,
			Audit:    rt.auditor,
			Docs:     rt.docs,
			Vectors:  rt.vectors,
			Objects:  rt.objects,
			RAG:      svc,
			Chat:     rt.chats,
			Registry: rt.registry,
			Findings: rt.findings,
			Alerts:   rt.alerts,
			Pipeline: pipe,
			Reindex: func(ctx context.Context, namespace string) error {
				_, err := pipe.ReindexNamespace(ctx, namespace)
				return err
			},
			Purge:      pipe.PurgeNamespace,
			Dispatcher: dispatcher,
			Dashboard:  dash,
		})

		go func() {
			<-ctx.Done()
			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown failed")
			}
		}()

		fmt.Fprintf(os.Stderr, "gkchatty %s listening on http://%s:%d\n", Version, rt.cfg.Server.Host, rt.cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  database:  %s\n", rt.cfg.DatabasePath())
		fmt.Fprintf(os.Stderr, "  vectors:   %d\n", rt.vectors.Stats().TotalVectors)
		fmt.Fprintf(os.Stderr, "  dashboard: http://%s:%d/\n", rt.cfg.Server.Host, rt.cfg.Server.Port)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().StringVar(&serverHost, "host", "", "bind address (overrides config)")
	serverCmd.Flags().IntVar(&serverPort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
