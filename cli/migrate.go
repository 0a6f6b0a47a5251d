package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hookline/hookline/engine/infra/postgres"
	"github.com/hookline/hookline/pkg/config"
	"github.com/hookline/hookline/pkg/logger"
)

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: "migrate brings the database schema up to date. Concurrent invocations " +
			"serialize on an advisory lock, so running it from several nodes is safe.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			if err := postgres.ApplyMigrationsWithLock(ctx, cfg.Database.DSN()); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			logger.FromContext(ctx).Info("Migrations applied", "database", cfg.Database.DBName)
			return nil
		},
	}
}
