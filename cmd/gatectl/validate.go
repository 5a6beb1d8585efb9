package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/propgate/propgate/internal/fieldspec"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Check a YAML field table before deploying it",
		Long:  "Parse a field table and check that it declares every field the catalogue cards need.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := fieldspec.LoadYAML(args[0])
			if err != nil {
				return eris.Wrap(err, "validate")
			}
			if _, err := fieldspec.Summary(t); err != nil {
				return eris.Wrap(err, "validate: catalogue fields")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d fields)\n", args[0], t.Len())
			return nil
		},
	}
}
