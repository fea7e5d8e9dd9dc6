package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/civitrack/civitrack/internal/platform/db"
	"github.com/civitrack/civitrack/migrations"
)

func newMigrateCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				files, err := db.MigrationFiles(migrations.FS)
				if err != nil {
					return err
				}
				for _, name := range files {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := cfg.logger(cmd.ErrOrStderr())
			pool, err := cfg.openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(cmd.Context(), pool, migrations.FS)
			if err != nil {
				return err
			}
			for _, name := range applied {
				logger.Info("migration applied", slog.String("file", name))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", len(applied))
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List embedded migration files without connecting")
	return cmd
}
