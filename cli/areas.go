package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hookline/hookline/engine/infra/postgres"
	"github.com/hookline/hookline/pkg/config"
)

func AreasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "areas",
		Short: "Inspect stored areas",
	}
	cmd.AddCommand(areasLsCmd())
	return cmd
}

func areasLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List stored areas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			store, err := postgres.NewStore(ctx, &cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close(ctx) }()
			areas, err := postgres.NewAreaRepo(store.Pool()).ListAll(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSER\tTRIGGER\tACTION\tREACTION")
			for _, a := range areas {
				trigger := a.TriggerKind
				if trigger == "" {
					trigger = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.UserID, trigger, a.ActionKind, a.ReactionKind)
			}
			return w.Flush()
		},
	}
}
