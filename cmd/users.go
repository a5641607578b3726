package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/auth"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts from the command line",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create member accounts, e.g. test users for loadtest",
	Long: `Creates --count member accounts named <prefix>-NNN sharing one
password. With --count 1 the name is the bare prefix.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		prefix, _ := cmd.Flags().GetString("prefix")
		password, _ := cmd.Flags().GetString("password")
		if count < 1 {
			return errors.New("--count must be at least 1")
		}
		if password == "" {
			return errors.New("--password is required")
		}

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		created := 0
		for i := 0; i < count; i++ {
			username := prefix
			if count > 1 {
				username = fmt.Sprintf("%s-%03d", prefix, i)
			}
			user, err := rt.users.Create(ctx, username, "", password, auth.RoleMember)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping %s: %v\n", username, err)
				continue
			}
			created++
			_ = rt.auditor.Log(ctx, audit.Entry{
				Action:   audit.ActionUserCreate,
				Username: "cli",
				Success:  true,
				Detail:   "created " + user.Username,
			})
		}
		fmt.Printf("Created %d account(s).\n", created)
		return nil
	},
}

var usersSeedAdminCmd = &cobra.Command{
	Use:   "seed-admin [username]",
	Short: "Create the first admin account",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := "admin"
		if len(args) == 1 {
			username = args[0]
		}

		passwordPrompt := promptui.Prompt{
			Label: "Admin password",
			Mask:  '*',
			Validate: func(s string) error {
				if len(s) < 8 {
					return errors.New("password must be at least 8 characters")
				}
				return nil
			},
		}
		password, err := passwordPrompt.Run()
		if err != nil {
			return fmt.Errorf("admin password: %w", err)
		}

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		user, err := rt.users.SeedAdmin(cmd.Context(), username, password)
		if err != nil {
			return err
		}
		_ = rt.auditor.Log(cmd.Context(), audit.Entry{
			Action:   audit.ActionUserCreate,
			Username: "cli",
			Success:  true,
			Detail:   "seeded admin " + user.Username,
		})
		fmt.Printf("Admin account %q created.\n", user.Username)
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")
		limit, _ := cmd.Flags().GetInt("limit")

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		users, err := rt.users.List(cmd.Context(), prefix, limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tROLE\tCREATED\tLAST LOGIN")
		for _, u := range users {
			lastLogin := "never"
			if u.LastLoginAt != nil {
				lastLogin = u.LastLoginAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				u.Username, u.Role, u.CreatedAt.Format("2006-01-02"), lastLogin)
		}
		return w.Flush()
	},
}

func init() {
	usersCreateCmd.Flags().Int("count", 1, "number of accounts to create")
	usersCreateCmd.Flags().String("prefix", "loadtest", "username prefix")
	usersCreateCmd.Flags().String("password", "", "shared password for the accounts")
	usersListCmd.Flags().String("prefix", "", "only usernames with this prefix")
	usersListCmd.Flags().Int("limit", 100, "maximum accounts to list")

	usersCmd.AddCommand(usersCreateCmd, usersSeedAdminCmd, usersListCmd)
	rootCmd.AddCommand(usersCmd)
}
