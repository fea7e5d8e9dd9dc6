package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/civitrack/civitrack/internal/budget"
	jobmetrics "github.com/civitrack/civitrack/internal/jobs"
)

// Reconciler repairs drifted cached totals.
type Reconciler interface {
	Reconcile(ctx context.Context) (budget.ReconcileResult, error)
}

// ReconcileJob runs budget reconcile from the queue.
type ReconcileJob struct {
	Reconciler Reconciler
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Timeout    time.Duration
}

// NewReconcileJob initialises the reconcile handler.
func NewReconcileJob(reconciler Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Reconciler: reconciler, Logger: logger, Metrics: metrics, Timeout: 10 * time.Minute}
}

// Handle executes one reconcile run.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reconciler == nil {
		return errors.New("budget reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.RequestedBy == "" {
		payload.RequestedBy = "scheduler"
	}

	tracker := j.Metrics.Track(TaskBudgetReconcile)
	defer func() {
		err = tracker.End(err)
	}()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	logger := j.logger().With(slog.String("requested_by", payload.RequestedBy))
	start := time.Now()
	result, err := j.Reconciler.Reconcile(ctx)
	if err != nil {
		logger.Error("budget reconcile failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddRepaired("branch", result.BranchesRepaired)
	j.Metrics.AddRepaired("project", result.ProjectsRepaired)

	attrs := []any{
		slog.Int("branches_scanned", result.BranchesScanned),
		slog.Int("branches_repaired", result.BranchesRepaired),
		slog.Int("projects_scanned", result.ProjectsScanned),
		slog.Int("projects_repaired", result.ProjectsRepaired),
		slog.Duration("duration", time.Since(start)),
	}
	if result.Repaired() > 0 {
		logger.Warn("budget reconcile repaired drifted totals", attrs...)
		return nil
	}
	logger.Info("budget reconcile completed", attrs...)
	return nil
}

func (j *ReconcileJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
