package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dallosh/analysis/engine/infra/postgres"
	"github.com/dallosh/analysis/pkg/config"
	"github.com/dallosh/analysis/pkg/logger"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the task database schema",
	}
	cmd.AddCommand(
		migrationCmd("up", "Apply every pending migration", postgres.ApplyMigrationsWithLock),
		migrationCmd("status", "Print the migration status", postgres.MigrationStatus),
		migrationCmd("down", "Roll back the most recent migration", postgres.RollbackMigration),
	)
	return cmd
}

func migrationCmd(use, short string, run func(ctx context.Context, dsn string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			if cfg == nil {
				return fmt.Errorf("configuration missing from context")
			}
			if err := run(ctx, cfg.Database.DSN()); err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}
			logger.FromContext(ctx).Info("Migration command completed", "command", use)
			return nil
		},
	}
}
