package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gkchatty",
	Short: "Local RAG chat backend with ops tooling",
	Long: `GKChatty Local is a self-hosted chat backend over your own documents.
It ingests markdown, HTML, JSON, OpenAPI and plain text into a local
vector index and answers questions grounded in that knowledge base,
served over REST, WebSocket and MCP. Diagnostics, load testing and
admin tooling ship as subcommands.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".gkchatty.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
