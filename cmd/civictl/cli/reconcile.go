package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/civitrack/civitrack/internal/budget"
)

// Reconciler repairs drifted cached totals.
type Reconciler interface {
	Reconcile(ctx context.Context) (budget.ReconcileResult, error)
}

// ReconcileOptions defines flags for the reconcile command.
type ReconcileOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ReconcileSummary is the JSON form of a reconcile run.
type ReconcileSummary struct {
	OK               bool `json:"ok"`
	BranchesScanned  int  `json:"branches_scanned"`
	BranchesRepaired int  `json:"branches_repaired"`
	ProjectsScanned  int  `json:"projects_scanned"`
	ProjectsRepaired int  `json:"projects_repaired"`
}

// ReconcileCommand runs a reconcile in-process. It exits 10 when any cached
// total had drifted and was repaired.
func ReconcileCommand(ctx context.Context, reconciler Reconciler, opts ReconcileOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	result, err := reconciler.Reconcile(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "reconcile: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		summary := ReconcileSummary{
			OK:               result.Repaired() == 0,
			BranchesScanned:  result.BranchesScanned,
			BranchesRepaired: result.BranchesRepaired,
			ProjectsScanned:  result.ProjectsScanned,
			ProjectsRepaired: result.ProjectsRepaired,
		}
		if err := json.NewEncoder(stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(stderr, "reconcile: encode json: %v\n", err)
			return 1
		}
	} else {
		_, _ = fmt.Fprintf(stdout, "branches: %d scanned, %d repaired\n", result.BranchesScanned, result.BranchesRepaired)
		_, _ = fmt.Fprintf(stdout, "projects: %d scanned, %d repaired\n", result.ProjectsScanned, result.ProjectsRepaired)
	}
	if result.Repaired() > 0 {
		return 10
	}
	return 0
}
