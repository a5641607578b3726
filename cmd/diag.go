package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gkchatty/gkchatty-local/internal/alerts"
	"github.com/gkchatty/gkchatty-local/internal/diag"
)

var diagCmd = &cobra.Command{
	Use:   "diag [check...]",
	Short: "Run operational health checks against the deployment",
	Long: `Runs diagnostics over the local stores and, when --base-url points at
a running server, over the HTTP API and its rate limiting. Failures
file findings, fire configured alert webhooks, and make the command
exit non-zero. Available checks: db, vector, metadata, storage,
ratelimit, api.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		baseURL, _ := cmd.Flags().GetString("base-url")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		noReport, _ := cmd.Flags().GetBool("no-report")

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.openVectors(); err != nil {
			return err
		}
		if err := rt.openObjects(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: object store unavailable: %v\n", err)
		}

		env := rt.diagEnv()
		env.BaseURL = baseURL
		env.ProbeUsername = username
		env.ProbePassword = password

		runner := diag.NewRunner(env)
		runner.Findings = rt.findings
		runner.Alerts = alerts.NewDispatcher(rt.alerts, rt.cfg.Alerts)
		runner.Audit = rt.auditor
		runner.Actor = "cli"

		report, err := runner.Run(cmd.Context(), args)
		if err != nil {
			return err
		}

		if jsonOutput {
			data, err := report.JSON()
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		} else {
			fmt.Print(report.Table())
		}

		if !noReport {
			path, err := report.Persist(rt.cfg.ReportsDir())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not persist report: %v\n", err)
			} else if !jsonOutput {
				fmt.Printf("\nReport written to %s\n", path)
			}
		}

		if report.Failed() {
			return errors.New("one or more checks failed")
		}
		return nil
	},
}

func init() {
	diagCmd.Flags().Bool("json", false, "output the report as JSON")
	diagCmd.Flags().Bool("no-report", false, "do not persist a markdown report")
	diagCmd.Flags().String("base-url", "", "running server to probe for the api and ratelimit checks")
	diagCmd.Flags().String("username", "", "probe username for the authenticated api round-trip")
	diagCmd.Flags().String("password", "", "probe password for the authenticated api round-trip")
	rootCmd.AddCommand(diagCmd)
}
