package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Search the knowledge base from the command line",
	Long: `Searches the vector store with a natural language query and prints the
matching chunks. With --answer the full RAG pipeline runs and a
grounded answer is synthesized by the configured LLM.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("namespace", "", "namespace to search (default: config namespace)")
	queryCmd.Flags().Bool("answer", false, "synthesize an answer with the configured LLM")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := args[0]
	namespace, _ := cmd.Flags().GetString("namespace")
	answer, _ := cmd.Flags().GetBool("answer")
	jsonOutput, _ := cmd.Flags().GetBool("json")

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

	svc, err := rt.ragService(answer)
	if err != nil {
		return err
	}

	if answer {
		result, err := svc.Ask(cmd.Context(), namespace, question, nil)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(result)
		}
		fmt.Println(result.Content)
		if len(result.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, src := range result.Sources {
				fmt.Printf("  %s (similarity %.0f%%)\n", src.FileName, src.Similarity*100)
			}
		}
		return nil
	}

	results, err := svc.Retriever().Retrieve(cmd.Context(), namespace, question)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(results)
	}
	for i, res := range results {
		meta := res.Document.Metadata
		fmt.Printf("--- %d. %s (chunk %d/%d, similarity %.0f%%) ---\n",
			i+1, meta.FileName, meta.ChunkIndex+1, meta.TotalChunks, res.Similarity*100)
		fmt.Println(res.Document.Content)
		fmt.Println()
	}
	return nil
}
