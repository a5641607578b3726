package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/gkchatty/gkchatty-local/internal/auth"
)

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Obtain and cache an API token",
	Long: `Logs in against a running gkchatty server and stores the token at
~/.gkchatty/credentials.json so later commands and the dashboard can
reuse it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		if serverURL == "" {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			serverURL = rt.baseURL()
			rt.Close()
		}

		var username string
		if len(args) == 1 {
			username = args[0]
		} else {
			prompt := promptui.Prompt{Label: "Username"}
			u, err := prompt.Run()
			if err != nil {
				return fmt.Errorf("username: %w", err)
			}
			username = u
		}

		passwordPrompt := promptui.Prompt{Label: "Password", Mask: '*'}
		password, err := passwordPrompt.Run()
		if err != nil {
			return fmt.Errorf("password: %w", err)
		}

		body, _ := json.Marshal(map[string]string{
			"username": username,
			"password": password,
		})
		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Post(serverURL+"/api/auth/login", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("reaching %s: %w", serverURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("login failed (%d): %s", resp.StatusCode, bytes.TrimSpace(data))
		}

		var loginResp struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
			return fmt.Errorf("decoding login response: %w", err)
		}

		if err := auth.SaveSession(&auth.ServerSession{
			ServerURL: serverURL,
			Token:     loginResp.Token,
			Username:  username,
		}); err != nil {
			return err
		}

		fmt.Printf("Logged in as %s. Token cached.\n", username)
		return nil
	},
}

func init() {
	loginCmd.Flags().String("server", "", "server base URL (default: host and port from config)")
	rootCmd.AddCommand(loginCmd)
}
