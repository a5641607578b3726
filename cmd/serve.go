package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/gkchatty/gkchatty-local/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing the
knowledge base and the ops toolkit (search, document lookup, audit
queries, diagnostics) to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.openVectors(); err != nil {
			return err
		}
		if err := rt.openObjects(cmd.Context()); err != nil {
			// Diagnostics degrade to a skip without an object store.
			fmt.Fprintf(os.Stderr, "Warning: object store unavailable: %v\n", err)
		}

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "gkchatty MCP server started on stdio (%d vectors indexed)\n",
			rt.vectors.Stats().TotalVectors)

		srv := mcpserver.NewServer(mcpserver.Deps{
			Env:              rt.diagEnv(),
			Docs:             rt.docs,
			Audit:            rt.auditor,
			DefaultNamespace: rt.cfg.Namespace,
		})
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
