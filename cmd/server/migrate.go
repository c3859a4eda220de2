package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"organograma/internal/platform/postgres"
)

func newMigrateCmd() *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			ctx := cmd.Context()

			db, err := postgres.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if !statusOnly {
				if err := postgres.Migrate(ctx, db); err != nil {
					return err
				}
			}
			version, err := postgres.MigrationVersion(ctx, db)
			if err != nil {
				return err
			}
			log.InfoContext(ctx, "database schema", "version", version, "applied", !statusOnly)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return err
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Print the current version without migrating")
	return cmd
}
