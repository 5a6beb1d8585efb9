package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/propgate/propgate/internal/fieldspec"
)

func newFieldsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "Print the field gating table",
		Long: `Print every declared field and the tier required to see it.

Examples:
  gatectl fields
  gatectl fields --file deploy/listing.yaml
  gatectl fields --yaml > listing.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTable(cmd)
			if err != nil {
				return eris.Wrap(err, "fields: load table")
			}
			asYAML, _ := cmd.Flags().GetBool("yaml")
			if asYAML {
				b, err := fieldspec.MarshalYAML(t)
				if err != nil {
					return eris.Wrap(err, "fields: encode yaml")
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			formatTable(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().Bool("yaml", false, "print the table in the YAML format accepted by --file")
	return cmd
}

func formatTable(out io.Writer, t fieldspec.Table) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tTIER")
	for _, s := range t.Specs() {
		fmt.Fprintf(w, "%s\t%s\n", s.FieldID, s.Required)
	}
	_ = w.Flush()
}
