package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBudgetReconcile re-scans every cached budget total.
	TaskBudgetReconcile = "budget:reconcile"
)

// ReconcilePayload records who asked for a reconcile run and when.
type ReconcilePayload struct {
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewReconcileTask constructs the reconcile task. Only one run may be queued
// per window.
func NewReconcileTask(requestedBy string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReconcilePayload{RequestedBy: requestedBy, RequestedAt: at.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBudgetReconcile, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Unique(10*time.Minute),
	), nil
}
