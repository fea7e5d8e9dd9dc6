package main

import (
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/civitrack/civitrack/cmd/civictl/cli"
	"github.com/civitrack/civitrack/jobs"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	cmd.AddCommand(newJobsTriggerCmd(), newJobsStatsCmd())
	return cmd
}

func newJobsTriggerCmd() *cobra.Command {
	var requestedBy string
	cmd := &cobra.Command{
		Use:       "trigger <job>",
		Short:     "Enqueue a job for the worker",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"reconcile", jobs.TaskBudgetReconcile},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			defer func() {
				if err := client.Close(); err != nil {
					cfg.logger(cmd.ErrOrStderr()).Warn("queue client close", slog.Any("error", err))
				}
			}()
			return exitCode(cli.NewJobsCLI(client, nil).TriggerCommand(cmd.Context(), cli.TriggerOptions{
				Name:        args[0],
				RequestedBy: requestedBy,
				Stdout:      cmd.OutOrStdout(),
				Stderr:      cmd.ErrOrStderr(),
			}))
		},
	}
	cmd.Flags().StringVar(&requestedBy, "by", "civictl", "Operator name recorded on the task")
	return cmd
}

func newJobsStatsCmd() *cobra.Command {
	var (
		jsonOutput bool
		scheduled  int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counters and upcoming scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			defer func() {
				if err := inspector.Close(); err != nil {
					cfg.logger(cmd.ErrOrStderr()).Warn("inspector close", slog.Any("error", err))
				}
			}()
			return exitCode(cli.NewJobsCLI(nil, inspector).StatsCommand(cmd.Context(), cli.StatsOptions{
				Scheduled:  scheduled,
				JSONOutput: jsonOutput,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			}))
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print counters as JSON")
	cmd.Flags().IntVar(&scheduled, "scheduled", 10, "Number of scheduled tasks to list (0 to skip)")
	return cmd
}
