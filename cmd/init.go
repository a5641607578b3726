package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/config"
	"github.com/gkchatty/gkchatty-local/internal/db"
	"github.com/gkchatty/gkchatty-local/internal/rag"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up gkchatty with an interactive wizard",
	Long: `Runs an interactive wizard that configures providers, storage and rate
limits, writes .gkchatty.yml, and optionally seeds the first admin
account and an assistant profile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}

		if err := maybeSeedAdmin(cmd.Context(), cfg); err != nil {
			return err
		}
		if err := maybeCollectProfile(cfg); err != nil {
			return err
		}

		fmt.Println("\nAll set. Start the API with `gkchatty server`.")
		return nil
	},
}

// maybeSeedAdmin offers to create the first admin account.
func maybeSeedAdmin(ctx context.Context, cfg *config.Config) error {
	confirm := promptui.Select{
		Label: "Create an admin account now",
		Items: []string{"yes", "later (gkchatty users seed-admin)"},
	}
	idx, _, err := confirm.Run()
	if err != nil || idx != 0 {
		return err
	}

	usernamePrompt := promptui.Prompt{
		Label:   "Admin username",
		Default: "admin",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("username cannot be empty")
			}
			return nil
		},
	}
	username, err := usernamePrompt.Run()
	if err != nil {
		return fmt.Errorf("admin username: %w", err)
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

	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	user, err := auth.NewStore(database).SeedAdmin(ctx, strings.TrimSpace(username), password)
	if err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	fmt.Printf("Admin account %q created.\n", user.Username)
	return nil
}

// maybeCollectProfile offers to record the assistant profile used in
// system prompts.
func maybeCollectProfile(cfg *config.Config) error {
	confirm := promptui.Select{
		Label: "Customize the assistant profile (name, tone, audience)",
		Items: []string{"use defaults", "customize"},
	}
	idx, _, err := confirm.Run()
	if err != nil || idx != 1 {
		return err
	}

	profile, err := rag.CollectProfileInteractive(nil)
	if err != nil {
		return fmt.Errorf("collecting profile: %w", err)
	}
	if err := profile.Save(cfg.ProfilePath()); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	fmt.Printf("Profile saved to %s\n", cfg.ProfilePath())
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
