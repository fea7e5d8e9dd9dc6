package main

import (
	"github.com/spf13/cobra"

	"github.com/civitrack/civitrack/cmd/civictl/cli"
	"github.com/civitrack/civitrack/internal/budget"
)

func newReconcileCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every cached branch and project total now",
		Long:  "Re-scan all branches and projects in-process and repair drifted totals. Exits 10 when anything was repaired.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := cfg.openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			service := budget.NewService(budget.NewRepository(pool))
			return exitCode(cli.ReconcileCommand(cmd.Context(), service, cli.ReconcileOptions{
				JSONOutput: jsonOutput,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			}))
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}
