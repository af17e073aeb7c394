package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	var (
		dir    string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations",
		Long:  `Apply every SQL file of the migrations directory to the database named by POSTGRES_DSN.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if dir == "" {
				dir = cfg.Postgres.MigrationsDir
			}

			if dryRun {
				files, err := persistence.MigrationFiles(dir)
				if err != nil {
					return err
				}
				for _, name := range files {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			if cfg.Postgres.DSN == "" {
				return errors.New("POSTGRES_DSN is not set")
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("failed to connect postgres: %w", err)
			}
			defer pg.Close()

			return persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), dir, logger)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Migrations directory (default POSTGRES_MIGRATIONS_DIR)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the migrations that would be applied")

	return cmd
}
