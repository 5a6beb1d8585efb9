package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/propgate/propgate/internal/config"
	"github.com/propgate/propgate/internal/database"
	"github.com/propgate/propgate/internal/entitlement"
	"github.com/propgate/propgate/internal/users"
)

// openUsers connects the profile store named by the environment. The returned
// func releases it.
var openUsers = func(ctx context.Context) (*users.Service, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, eris.Wrap(err, "load config")
	}
	if cfg.MongoDB.URI == "" {
		return nil, nil, eris.New("MONGODB_URI is not set")
	}
	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return nil, nil, eris.Wrap(err, "connect mongo")
	}
	col := client.Database(cfg.MongoDB.Database).Collection("users")
	return users.NewService(users.NewMongoUserRepository(col)), func() { _ = client.Disconnect(context.Background()) }, nil
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Read or correct the stored plan of a viewer profile",
		Long: `Operator fixups for viewer profiles. The stored value is kept verbatim;
only the literal "premium" grants premium when it is read back.

Examples:
  gatectl plan get 3f1c...
  gatectl plan set 3f1c... premium
  gatectl plan clear 3f1c...`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <sub>",
			Short: "Print the stored plan and the tier it grants",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withUsers(cmd, func(ctx context.Context, svc *users.Service) error {
					u, err := svc.GetBySub(ctx, args[0])
					if err != nil {
						return eris.Wrapf(err, "plan get %s", args[0])
					}
					stored := "(none)"
					if u.Plan != nil {
						stored = fmt.Sprintf("%q", *u.Plan)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tstored=%s\ttier=%s\n", u.Sub, stored, entitlement.NormalizePlan(u.Plan))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "set <sub> <plan>",
			Short: "Store a plan on an existing profile",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				plan := args[1]
				return setPlan(cmd, args[0], &plan)
			},
		},
		&cobra.Command{
			Use:   "clear <sub>",
			Short: "Remove the stored plan so the profile falls back to free",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return setPlan(cmd, args[0], nil)
			},
		},
	)
	return cmd
}

func setPlan(cmd *cobra.Command, sub string, plan *string) error {
	return withUsers(cmd, func(ctx context.Context, svc *users.Service) error {
		if err := svc.SetPlan(ctx, sub, plan); err != nil {
			return eris.Wrapf(err, "plan set %s", sub)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\ttier=%s\n", sub, entitlement.NormalizePlan(plan))
		return nil
	})
}

func withUsers(cmd *cobra.Command, fn func(context.Context, *users.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := openUsers(ctx)
	if err != nil {
		return eris.Wrap(err, "profile store")
	}
	defer closeFn()
	return fn(ctx, svc)
}
