// Command gatectl inspects field gating tables and previews projections.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/propgate/propgate/internal/fieldspec"
	"github.com/propgate/propgate/pkg/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gatectl",
		Short:         "Inspect listing field gating",
		Long:          "Print and validate field gating tables and preview what a viewer on a given plan sees of a listing record.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, _ := cmd.Flags().GetString("log-level")
			return logger.Configure(lvl, "console")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("file", "", "YAML field table (default: built-in listing table)")
	root.AddCommand(newFieldsCmd(), newProjectCmd(), newValidateCmd(), newPlanCmd())
	return root
}

// loadTable returns the table named by --file, or the built-in listing table.
func loadTable(cmd *cobra.Command) (fieldspec.Table, error) {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return fieldspec.Listing, nil
	}
	logger.Debugf("loading field table from %s", path)
	return fieldspec.LoadYAML(path)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
