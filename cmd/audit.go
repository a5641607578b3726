package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gkchatty/gkchatty-local/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and prune the audit trail",
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		action, _ := cmd.Flags().GetString("action")
		username, _ := cmd.Flags().GetString("username")
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetString("since")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		filter := audit.QueryFilter{
			Action:   audit.Action(action),
			Username: username,
			Limit:    limit,
		}
		if since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return fmt.Errorf("parsing --since: %w", err)
			}
			filter.Since = &t
		}

		entries, err := rt.auditor.Query(cmd.Context(), filter)
		if err != nil {
			return err
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(entries)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tACTION\tUSERNAME\tOUTCOME\tDETAIL")
		for _, e := range entries {
			outcome := "ok"
			if !e.Success {
				outcome = "failed"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Username, outcome, e.Detail)
		}
		return w.Flush()
	},
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit entries older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		before, _ := cmd.Flags().GetString("before")
		olderThan, _ := cmd.Flags().GetDuration("older-than")

		var cutoff time.Time
		switch {
		case before != "":
			t, err := time.Parse(time.RFC3339, before)
			if err != nil {
				return fmt.Errorf("parsing --before: %w", err)
			}
			cutoff = t
		case olderThan > 0:
			cutoff = time.Now().UTC().Add(-olderThan)
		default:
			return fmt.Errorf("provide --before or --older-than")
		}

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		deleted, err := rt.auditor.DeleteBefore(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		_ = rt.auditor.Log(cmd.Context(), audit.Entry{
			Action:   audit.ActionAuditPrune,
			Username: "cli",
			Success:  true,
			Detail:   fmt.Sprintf("deleted %d entries before %s", deleted, cutoff.Format(time.RFC3339)),
		})
		fmt.Printf("Deleted %d entr%s.\n", deleted, pluralEntries(deleted))
		return nil
	},
}

func pluralEntries(n int64) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func init() {
	auditQueryCmd.Flags().String("action", "", "filter by action, e.g. login, chat")
	auditQueryCmd.Flags().String("username", "", "filter by username")
	auditQueryCmd.Flags().String("since", "", "only entries at or after this RFC3339 time")
	auditQueryCmd.Flags().Int("limit", 50, "maximum entries to print")
	auditQueryCmd.Flags().Bool("json", false, "output entries as JSON")
	auditPruneCmd.Flags().String("before", "", "RFC3339 cutoff; older entries are deleted")
	auditPruneCmd.Flags().Duration("older-than", 0, "relative cutoff, e.g. 720h")

	auditCmd.AddCommand(auditQueryCmd, auditPruneCmd)
	rootCmd.AddCommand(auditCmd)
}
