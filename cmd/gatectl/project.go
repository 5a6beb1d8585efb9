package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/propgate/propgate/internal/entitlement"
	"github.com/propgate/propgate/internal/gating"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Preview a listing record as a viewer on a plan sees it",
		Long: `Project a JSON listing record through the field table and print the gated
record. The plan is normalised exactly as it is for live viewers: only the
literal "premium" grants premium; anything else, or no --plan, is free.

Examples:
  gatectl project --record listing.json
  gatectl project --plan premium --record listing.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("record")
			if path == "" {
				return eris.New("project: --record is required")
			}
			t, err := loadTable(cmd)
			if err != nil {
				return eris.Wrap(err, "project: load table")
			}
			b, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrap(err, "project: read record")
			}
			var rec gating.Record
			if err := json.Unmarshal(b, &rec); err != nil {
				return eris.Wrapf(err, "project: decode %s", path)
			}

			var plan *string
			if cmd.Flags().Changed("plan") {
				p, _ := cmd.Flags().GetString("plan")
				plan = &p
			}
			viewer := entitlement.ViewerFromPlan(plan)
			gr := gating.Project(rec, t, viewer.Plan)

			out := struct {
				Viewer string             `json:"viewer"`
				Upsell bool               `json:"upsell"`
				Fields gating.GatedRecord `json:"fields"`
			}{Viewer: viewer.Plan.String(), Upsell: gating.IsAnyFieldGated(gr), Fields: gr}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().String("plan", "", "raw plan string from the viewer profile")
	cmd.Flags().String("record", "", "path to a JSON listing record")
	return cmd
}
