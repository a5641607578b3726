package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gkchatty/gkchatty-local/internal/llm"
)

// chatHistoryLimit bounds how many prior turns are sent with each
// question, matching the server-side session window.
const chatHistoryLimit = 10

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the knowledge base in the terminal",
	Long: `Starts an interactive session against the local knowledge base. Each
answer is grounded in retrieved chunks; sources are listed under it.
Type /quit to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, _ := cmd.Flags().GetString("namespace")

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.openVectors(); err != nil {
			return err
		}
		if namespace == "" {
			namespace = rt.cfg.Namespace
		}

		svc, err := rt.ragService(true)
		if err != nil {
			return err
		}

		fmt.Printf("Chatting against namespace %q. Type /quit to exit.\n\n", namespace)

		var history []llm.Message
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("you> ")
			if !scanner.Scan() {
				fmt.Println()
				return scanner.Err()
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}
			if question == "/quit" || question == "/exit" {
				return nil
			}

			answer, err := svc.Ask(cmd.Context(), namespace, question, history)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}

			fmt.Printf("\n%s\n", answer.Content)
			if len(answer.Sources) > 0 {
				fmt.Println("\nsources:")
				for _, src := range answer.Sources {
					fmt.Printf("  %s (%.0f%%)\n", src.FileName, src.Similarity*100)
				}
			}
			fmt.Println()

			if answer.Grounded {
				history = append(history,
					llm.Message{Role: llm.RoleUser, Content: question},
					llm.Message{Role: llm.RoleAssistant, Content: answer.Content},
				)
				if len(history) > chatHistoryLimit*2 {
					history = history[len(history)-chatHistoryLimit*2:]
				}
			}
		}
	},
}

func init() {
	chatCmd.Flags().String("namespace", "", "namespace to chat against (default: config namespace)")
	rootCmd.AddCommand(chatCmd)
}
