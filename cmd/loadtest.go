package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gkchatty/gkchatty-local/internal/loadtest"
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Drive synthetic traffic against a running server",
	Long: `Runs a load scenario (login, chat, audit or mixed) against a running
gkchatty server and reports latency percentiles, status counts and
throughput. Test users must exist first: create them with
` + "`gkchatty users create --count N`" + `. Breached thresholds make the
command exit non-zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL, _ := cmd.Flags().GetString("base-url")
		scenarioName, _ := cmd.Flags().GetString("scenario")
		users, _ := cmd.Flags().GetInt("users")
		requests, _ := cmd.Flags().GetInt("requests")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		duration, _ := cmd.Flags().GetDuration("duration")
		prefix, _ := cmd.Flags().GetString("prefix")
		password, _ := cmd.Flags().GetString("password")
		adminUser, _ := cmd.Flags().GetString("admin-username")
		adminPass, _ := cmd.Flags().GetString("admin-password")
		maxErrorRate, _ := cmd.Flags().GetFloat64("max-error-rate")
		maxP95, _ := cmd.Flags().GetDuration("max-p95")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		scenario, err := loadtest.ParseScenario(scenarioName)
		if err != nil {
			return err
		}

		if baseURL == "" {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			baseURL = rt.baseURL()
			rt.Close()
		}

		report, err := loadtest.Run(cmd.Context(), loadtest.Options{
			BaseURL:       baseURL,
			Scenario:      scenario,
			Users:         users,
			Requests:      requests,
			Concurrency:   concurrency,
			Duration:      duration,
			UserPrefix:    prefix,
			Password:      password,
			AdminUsername: adminUser,
			AdminPassword: adminPass,
			MaxErrorRate:  maxErrorRate,
			MaxP95:        maxP95,
		})
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

		if report.Failed() {
			return errors.New("thresholds breached")
		}
		return nil
	},
}

func init() {
	loadtestCmd.Flags().String("base-url", "", "target server (default: host and port from config)")
	loadtestCmd.Flags().String("scenario", "mixed", "scenario: login, chat, audit or mixed")
	loadtestCmd.Flags().Int("users", 10, "number of test users driving traffic")
	loadtestCmd.Flags().Int("requests", 0, "total request budget (default: users*10)")
	loadtestCmd.Flags().Int("concurrency", 0, "in-flight request bound (default: users)")
	loadtestCmd.Flags().Duration("duration", 0, "stop after this wall time instead of a request budget")
	loadtestCmd.Flags().String("prefix", "loadtest", "test username prefix")
	loadtestCmd.Flags().String("password", "loadtest-password", "shared test-user password")
	loadtestCmd.Flags().String("admin-username", "", "admin account for the audit scenario")
	loadtestCmd.Flags().String("admin-password", "", "admin password for the audit scenario")
	loadtestCmd.Flags().Float64("max-error-rate", 0, "fail when the error rate exceeds this fraction")
	loadtestCmd.Flags().Duration("max-p95", 0, "fail when p95 latency exceeds this duration")
	loadtestCmd.Flags().Bool("json", false, "output the report as JSON")
	rootCmd.AddCommand(loadtestCmd)
}
