package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"

	"github.com/civitrack/civitrack/jobs"
)

// Enqueuer submits reconcile runs to the queue.
type Enqueuer interface {
	EnqueueReconcile(ctx context.Context, requestedBy string) (*asynq.TaskInfo, error)
}

// QueueReader is the read side of asynq.Inspector used by the stats command.
type QueueReader interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for queued jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector QueueReader
}

// NewJobsCLI builds the helpers. Either side may be nil when a command only
// needs the other.
func NewJobsCLI(client Enqueuer, inspector QueueReader) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name, requestedBy string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case "reconcile", jobs.TaskBudgetReconcile:
		return c.client.EnqueueReconcile(ctx, requestedBy)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed_today"`
	Failed    int    `json:"failed_today"`
}

// InspectQueue reports the default queue. A queue that has never held a task
// is reported as empty.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return stats, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
		stats.Processed = info.Processed
		stats.Failed = info.Failed
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	tasks, err := c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, nil
	}
	return tasks, err
}

// TriggerOptions defines flags for the jobs trigger command.
type TriggerOptions struct {
	Name        string
	RequestedBy string
	Stdout      io.Writer
	Stderr      io.Writer
}

// TriggerCommand enqueues one job and prints its id. A duplicate of a run
// already waiting in the queue is not an error.
func (c *JobsCLI) TriggerCommand(ctx context.Context, opts TriggerOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	if opts.RequestedBy == "" {
		opts.RequestedBy = "civictl"
	}
	info, err := c.Trigger(ctx, opts.Name, opts.RequestedBy)
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask), errors.Is(err, asynq.ErrTaskIDConflict):
		_, _ = fmt.Fprintf(stdout, "%s already queued\n", opts.Name)
		return 0
	case err != nil:
		_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return 0
}

// StatsOptions defines flags for the jobs stats command.
type StatsOptions struct {
	Scheduled  int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// StatsCommand prints queue counters and the next scheduled tasks.
func (c *JobsCLI) StatsCommand(ctx context.Context, opts StatsOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED\tPROCESSED\tFAILED")
	_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived, stats.Processed, stats.Failed)
	_ = tw.Flush()

	if opts.Scheduled <= 0 {
		return 0
	}
	tasks, err := c.ListScheduled(ctx, opts.Scheduled)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs stats: list scheduled: %v\n", err)
		return 1
	}
	for _, task := range tasks {
		_, _ = fmt.Fprintf(stdout, "  %s %s at %s\n", task.ID, task.Type, task.NextProcessAt.UTC().Format(time.RFC3339))
	}
	return 0
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
