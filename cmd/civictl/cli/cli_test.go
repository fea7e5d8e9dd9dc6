package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civitrack/civitrack/internal/budget"
	"github.com/civitrack/civitrack/jobs"
)

type stubEnqueuer struct {
	err   error
	calls []string
}

func (s *stubEnqueuer) EnqueueReconcile(ctx context.Context, requestedBy string) (*asynq.TaskInfo, error) {
	s.calls = append(s.calls, requestedBy)
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "t-1", Type: jobs.TaskBudgetReconcile, Queue: jobs.QueueDefault}, nil
}

type stubQueue struct {
	info      *asynq.QueueInfo
	err       error
	scheduled []*asynq.TaskInfo
}

func (s stubQueue) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func (s stubQueue) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return s.scheduled, s.err
}

func TestTriggerCommand(t *testing.T) {
	client := &stubEnqueuer{}
	c := NewJobsCLI(client, nil)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := c.TriggerCommand(context.Background(), TriggerOptions{Name: "reconcile", Stdout: stdout, Stderr: stderr})
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"civictl"}, client.calls)
	assert.Contains(t, stdout.String(), "enqueued budget:reconcile id=t-1")

	stdout.Reset()
	code = c.TriggerCommand(context.Background(), TriggerOptions{Name: "nightly", Stdout: stdout, Stderr: stderr})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unsupported job nightly")
}

func TestTriggerCommandDuplicateIsNotAnError(t *testing.T) {
	c := NewJobsCLI(&stubEnqueuer{err: asynq.ErrDuplicateTask}, nil)
	stdout := new(bytes.Buffer)
	code := c.TriggerCommand(context.Background(), TriggerOptions{Name: jobs.TaskBudgetReconcile, Stdout: stdout, Stderr: new(bytes.Buffer)})
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "already queued")
}

func TestStatsCommand(t *testing.T) {
	next := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewJobsCLI(nil, stubQueue{
		info:      &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 2, Retry: 1, Processed: 9},
		scheduled: []*asynq.TaskInfo{{ID: "s-1", Type: jobs.TaskBudgetReconcile, NextProcessAt: next}},
	})

	stdout := new(bytes.Buffer)
	code := c.StatsCommand(context.Background(), StatsOptions{Scheduled: 5, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "PENDING")
	assert.Contains(t, stdout.String(), "s-1 budget:reconcile at 2024-03-01T10:00:00Z")

	stdout.Reset()
	code = c.StatsCommand(context.Background(), StatsOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 0, code)
	var stats QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 2, Retry: 1, Processed: 9}, stats)
}

func TestInspectQueueMissingQueueIsEmpty(t *testing.T) {
	c := NewJobsCLI(nil, stubQueue{err: asynq.ErrQueueNotFound})
	stats, err := c.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault}, stats)

	_, err = NewJobsCLI(nil, stubQueue{err: errors.New("dial tcp: refused")}).InspectQueue(context.Background())
	assert.Error(t, err)
}

type stubReconciler struct {
	result budget.ReconcileResult
	err    error
}

func (s stubReconciler) Reconcile(ctx context.Context) (budget.ReconcileResult, error) {
	return s.result, s.err
}

func TestReconcileCommandExitCodes(t *testing.T) {
	stdout := new(bytes.Buffer)
	clean := stubReconciler{result: budget.ReconcileResult{BranchesScanned: 4, ProjectsScanned: 2}}
	assert.Equal(t, 0, ReconcileCommand(context.Background(), clean, ReconcileOptions{Stdout: stdout, Stderr: new(bytes.Buffer)}))
	assert.Contains(t, stdout.String(), "branches: 4 scanned, 0 repaired")

	stdout.Reset()
	drift := stubReconciler{result: budget.ReconcileResult{BranchesScanned: 4, BranchesRepaired: 1, ProjectsScanned: 2}}
	assert.Equal(t, 10, ReconcileCommand(context.Background(), drift, ReconcileOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)}))
	var summary ReconcileSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.False(t, summary.OK)
	assert.Equal(t, 1, summary.BranchesRepaired)

	stderr := new(bytes.Buffer)
	failing := stubReconciler{err: errors.New("connection reset")}
	assert.Equal(t, 1, ReconcileCommand(context.Background(), failing, ReconcileOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	assert.Contains(t, stderr.String(), "connection reset")
}

type stubReports struct {
	gotUser    int64
	gotBy      string
	gotProject int64
}

func (s *stubReports) BuildReport(ctx context.Context, userID, projectID int64, exportedBy string, now time.Time) (budget.Report, error) {
	s.gotUser, s.gotProject, s.gotBy = userID, projectID, exportedBy
	if projectID != 1 {
		return budget.Report{}, budget.ErrNotFound
	}
	return budget.Report{
		Project:    budget.Project{ID: 1, Name: "Ward 12", Amount: decimal.RequireFromString("1000000")},
		ExportedAt: now,
		ExportedBy: exportedBy,
	}, nil
}

type stubPDF struct{}

func (stubPDF) Export(ctx context.Context, report budget.Report) ([]byte, error) {
	return []byte("%PDF-1.7 " + report.Project.Name), nil
}

func TestExportCommandWritesFile(t *testing.T) {
	reports := &stubReports{}
	out := filepath.Join(t.TempDir(), "ward.pdf")
	stdout := new(bytes.Buffer)

	code := ExportCommand(context.Background(), reports, stubPDF{}, ExportOptions{
		UserID: 7, ProjectID: 1, Out: out, ExportedBy: "asha",
		Stdout: stdout, Stderr: new(bytes.Buffer),
	})
	require.Equal(t, 0, code)
	assert.Equal(t, int64(7), reports.gotUser)
	assert.Equal(t, "asha", reports.gotBy)

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 Ward 12", string(body))
	assert.Contains(t, stdout.String(), "wrote "+out)
}

func TestExportCommandStdoutAndErrors(t *testing.T) {
	stdout := new(bytes.Buffer)
	code := ExportCommand(context.Background(), &stubReports{}, stubPDF{}, ExportOptions{
		UserID: 7, ProjectID: 1, Out: "-", Stdout: stdout, Stderr: new(bytes.Buffer),
	})
	require.Equal(t, 0, code)
	assert.Equal(t, "%PDF-1.7 Ward 12", stdout.String())

	stderr := new(bytes.Buffer)
	code = ExportCommand(context.Background(), &stubReports{}, stubPDF{}, ExportOptions{
		UserID: 7, ProjectID: 2, Out: "-", Stdout: new(bytes.Buffer), Stderr: stderr,
	})
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "project 2 not found")

	code = ExportCommand(context.Background(), &stubReports{}, stubPDF{}, ExportOptions{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	assert.Equal(t, 1, code)
}
