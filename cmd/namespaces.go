package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gkchatty/gkchatty-local/internal/namespaces"
	"github.com/gkchatty/gkchatty-local/internal/progress"
)

var namespacesCmd = &cobra.Command{
	Use:     "namespaces",
	Aliases: []string{"ns"},
	Short:   "Manage the namespace registry",
}

var namespacesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered namespaces with their index counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		list, err := rt.registry.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tENV\tSTATUS\tDOCS\tVECTORS\tOWNER")
		for _, ns := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				ns.Name, ns.Environment, ns.Status, ns.DocumentCount, ns.VectorCount, ns.Owner)
		}
		return w.Flush()
	},
}

var namespacesAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Register a namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envName, _ := cmd.Flags().GetString("env")
		description, _ := cmd.Flags().GetString("description")

		env := namespaces.EnvDev
		if envName != "" {
			parsed, ok := namespaces.ParseEnvironment(envName)
			if !ok {
				return fmt.Errorf("unknown environment %q: must be dev, staging or prod", envName)
			}
			env = parsed
		}

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ns := &namespaces.Namespace{
			Name:        args[0],
			Environment: env,
			Description: description,
			Status:      namespaces.StatusPending,
		}
		if err := rt.registry.Create(cmd.Context(), ns); err != nil {
			return err
		}
		fmt.Printf("Namespace %q registered.\n", ns.Name)
		return nil
	},
}

var namespacesReindexCmd = &cobra.Command{
	Use:   "reindex [name]",
	Short: "Rebuild one namespace's vectors from stored originals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		pipe.SetReporter(progress.NewReporter("Reindexing"))

		result, err := pipe.ReindexNamespace(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("\nReindexed %d document(s), %d chunk(s).\n",
			result.FilesProcessed, result.ChunksIndexed)
		if result.FilesFailed > 0 {
			return fmt.Errorf("%d document(s) failed", result.FilesFailed)
		}
		return nil
	},
}

func init() {
	namespacesAddCmd.Flags().String("env", "dev", "environment tag: dev, staging or prod")
	namespacesAddCmd.Flags().String("description", "", "what this namespace holds")

	namespacesCmd.AddCommand(namespacesListCmd, namespacesAddCmd, namespacesReindexCmd)
	rootCmd.AddCommand(namespacesCmd)
}
