package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gkchatty/gkchatty-local/internal/ingest"
	"github.com/gkchatty/gkchatty-local/internal/progress"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index a directory of documents into the knowledge base",
	Long: `Walks a directory tree, extracts text from markdown, HTML, JSON,
OpenAPI and plain text files, and indexes the chunks into the vector
store. Unchanged files are skipped unless --rebuild is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		namespace, _ := cmd.Flags().GetString("namespace")
		rebuild, _ := cmd.Flags().GetBool("rebuild")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.openVectors(); err != nil {
			return err
		}
		if err := rt.openObjects(cmd.Context()); err != nil {
			return err
		}

		pipe := rt.pipeline()
		opts := ingest.DirOptions{Namespace: namespace, Force: rebuild}

		if dryRun {
			estimate, err := pipe.DryRun(cmd.Context(), root, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Files to index:    %d\n", estimate.TotalFiles)
			fmt.Printf("Estimated chunks:  %d\n", estimate.TotalChunks)
			fmt.Printf("Embedding tokens:  ~%d\n", estimate.EmbeddingTokens)
			fmt.Printf("Estimated cost:    $%.4f (%s)\n", estimate.EstimatedCost, estimate.Model)
			return nil
		}

		pipe.SetReporter(progress.NewReporter("Indexing"))

		result, err := pipe.IngestDir(cmd.Context(), root, opts)
		if err != nil {
			return err
		}

		fmt.Printf("\nIndexed %d file(s), %d chunk(s) in %s",
			result.FilesProcessed, result.ChunksIndexed, result.Duration.Round(10*time.Millisecond))
		if result.FilesSkipped > 0 {
			fmt.Printf(" (%d unchanged)", result.FilesSkipped)
		}
		fmt.Println()

		if result.FilesFailed > 0 {
			for _, e := range result.Errors {
				fmt.Printf("  %v\n", e)
			}
			return fmt.Errorf("%d file(s) failed", result.FilesFailed)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("namespace", "", "target namespace (default: config namespace)")
	ingestCmd.Flags().Bool("rebuild", false, "reindex files even when unchanged")
	ingestCmd.Flags().Bool("dry-run", false, "estimate embedding cost without indexing")
	rootCmd.AddCommand(ingestCmd)
}
