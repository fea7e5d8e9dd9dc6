package main

import (
	"github.com/spf13/cobra"

	"github.com/civitrack/civitrack/cmd/civictl/cli"
	"github.com/civitrack/civitrack/internal/budget"
	"github.com/civitrack/civitrack/internal/budget/export"
	"github.com/civitrack/civitrack/internal/view"
	"github.com/civitrack/civitrack/report"
)

func newExportCmd() *cobra.Command {
	var opts cli.ExportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a project's itemized PDF report",
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

			exporter, err := export.NewPDFExporter(
				report.NewClient(cfg.GotenbergURL),
				view.NewMoneyFormatter(cfg.ReportLocale, cfg.CurrencySymbol),
			)
			if err != nil {
				return err
			}
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			service := budget.NewService(budget.NewRepository(pool))
			return exitCode(cli.ExportCommand(cmd.Context(), service, exporter, opts))
		},
	}
	flags := cmd.Flags()
	flags.Int64Var(&opts.UserID, "user", 0, "Owner user id")
	flags.Int64Var(&opts.ProjectID, "project", 0, "Project id")
	flags.StringVarP(&opts.Out, "out", "o", "", "Output file, - for stdout (default project-<id>-report.pdf)")
	flags.StringVar(&opts.ExportedBy, "by", "civictl", "Name printed as the exporter")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
