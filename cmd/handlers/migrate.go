package handlers

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"meridian/internal/config"
	"meridian/internal/logger"
	"meridian/internal/persistence"
	"meridian/internal/store"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage database schema migrations.

Every command that touches the database applies pending migrations on
its own; these subcommands are for inspecting and repairing the schema.

Subcommands:
  up       Apply all pending migrations
  status   Show migration status
  rollback Forget the last applied migration (schema changes stay)`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateRollbackCmd())

	return cmd
}

func openMigrations() (*persistence.SQLDB, *persistence.MigrationManager, error) {
	db, err := store.Connect(config.Get().Database)
	if err != nil {
		return nil, nil, err
	}
	return db, persistence.NewMigrationManager(db), nil
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, mm, err := openMigrations()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := mm.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Get().Info().Str("dialect", db.Dialect()).Msg("Database schema is up to date")
			return nil
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, mm, err := openMigrations()
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := mm.Status(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tAPPLIED\tDESCRIPTION")
			for _, s := range statuses {
				fmt.Fprintf(w, "%03d\t%t\t%s\n", s.Version, s.Applied, s.Description)
			}
			return w.Flush()
		},
	}
}

func newMigrateRollbackCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Forget the last applied migration",
		Long: `Remove the last migration record from schema_migrations.

Schema changes are not reverted; drop them by hand before re-applying.
Requires --force.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("rollback only removes the migration record; pass --force to continue")
			}
			db, mm, err := openMigrations()
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := mm.Rollback(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed record for migration %03d\n", version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm the rollback")
	return cmd
}
