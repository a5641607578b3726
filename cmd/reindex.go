package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gkchatty/gkchatty-local/internal/progress"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed a namespace from stored originals",
	Long: `Wipes a namespace's vectors and rebuilds them from the originals in
the object store. Use after changing the embedding model or chunking.`,
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
		if err := rt.openObjects(cmd.Context()); err != nil {
			return err
		}

		if namespace == "" {
			namespace = rt.cfg.Namespace
		}

		pipe := rt.pipeline()
		pipe.SetReporter(progress.NewReporter("Reindexing"))

		result, err := pipe.ReindexNamespace(cmd.Context(), namespace)
		if err != nil {
			return err
		}

		fmt.Printf("\nReindexed %d document(s), %d chunk(s) in %s\n",
			result.FilesProcessed, result.ChunksIndexed, result.Duration.Round(10*time.Millisecond))

		if result.FilesFailed > 0 {
			for _, e := range result.Errors {
				fmt.Printf("  %v\n", e)
			}
			return fmt.Errorf("%d document(s) failed", result.FilesFailed)
		}
		return nil
	},
}

func init() {
	reindexCmd.Flags().String("namespace", "", "namespace to rebuild (default: config namespace)")
	rootCmd.AddCommand(reindexCmd)
}
