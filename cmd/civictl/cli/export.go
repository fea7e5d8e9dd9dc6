package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/civitrack/civitrack/internal/budget"
)

// ReportBuilder assembles the itemized report for one project.
type ReportBuilder interface {
	BuildReport(ctx context.Context, userID, projectID int64, exportedBy string, now time.Time) (budget.Report, error)
}

// Exporter renders a report into PDF bytes.
type Exporter interface {
	Export(ctx context.Context, report budget.Report) ([]byte, error)
}

// ExportOptions defines flags for the export command.
type ExportOptions struct {
	UserID     int64
	ProjectID  int64
	ExportedBy string
	Out        string
	Now        func() time.Time
	Stdout     io.Writer
	Stderr     io.Writer
}

// ExportCommand writes a project's PDF report to opts.Out, or to stdout when
// Out is "-".
func ExportCommand(ctx context.Context, builder ReportBuilder, exporter Exporter, opts ExportOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	if opts.UserID <= 0 || opts.ProjectID <= 0 {
		_, _ = fmt.Fprintln(stderr, "export: --user and --project must be positive")
		return 1
	}
	if opts.Out == "" {
		opts.Out = fmt.Sprintf("project-%d-report.pdf", opts.ProjectID)
	}
	if opts.ExportedBy == "" {
		opts.ExportedBy = "civictl"
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	report, err := builder.BuildReport(ctx, opts.UserID, opts.ProjectID, opts.ExportedBy, now())
	if errors.Is(err, budget.ErrNotFound) {
		_, _ = fmt.Fprintf(stderr, "export: project %d not found for user %d\n", opts.ProjectID, opts.UserID)
		return 2
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "export: %v\n", err)
		return 1
	}
	pdf, err := exporter.Export(ctx, report)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "export: render pdf: %v\n", err)
		return 1
	}

	if opts.Out == "-" {
		if _, err := stdout.Write(pdf); err != nil {
			_, _ = fmt.Fprintf(stderr, "export: write: %v\n", err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(opts.Out, pdf, 0o644); err != nil {
		_, _ = fmt.Fprintf(stderr, "export: write: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", opts.Out, len(pdf))
	return 0
}
