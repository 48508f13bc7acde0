// Package worker bootstraps the River job queue. Payroll runs are the one
// heavy job: on postgres they execute in the background, on sqlite the
// queue is a no-op and the service layer runs them inline.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// PayrollRunner computes the entries of one payroll cycle. Implemented by
// the payroll service; declared here so the queue does not depend on its
// constructor.
type PayrollRunner interface {
	RunCycle(ctx context.Context, cycleID string) error
}

// PayrollRunArgs queues the entry computation for one cycle.
type PayrollRunArgs struct {
	CycleID string `json:"cycle_id"`
}

// Kind returns the unique job type identifier for payroll run jobs.
func (PayrollRunArgs) Kind() string { return "payroll_run" }

type payrollRunWorker struct {
	river.WorkerDefaults[PayrollRunArgs]
	runner PayrollRunner
	log    *slog.Logger
}

func (w *payrollRunWorker) Work(ctx context.Context, job *river.Job[PayrollRunArgs]) error {
	w.log.Info("running payroll cycle", "cycle_id", job.Args.CycleID)
	return w.runner.RunCycle(ctx, job.Args.CycleID)
}

// Queue is the interface exposed by both the real River client and noopQueue.
// It doubles as the payroll enqueuer handed to the service layer.
type Queue interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	EnqueuePayrollRun(ctx context.Context, cycleID string) (bool, error)
}

// Client wraps river.Client and exposes a Start/Stop lifecycle.
type Client struct {
	client *river.Client[pgx.Tx]
	log    *slog.Logger
}

// Start begins processing queued jobs.
func (c *Client) Start(ctx context.Context) error { return c.client.Start(ctx) }

// Stop gracefully shuts down the worker client.
func (c *Client) Stop(ctx context.Context) error { return c.client.Stop(ctx) }

// EnqueuePayrollRun inserts a payroll run job.
func (c *Client) EnqueuePayrollRun(ctx context.Context, cycleID string) (bool, error) {
	_, err := c.client.Insert(ctx, PayrollRunArgs{CycleID: cycleID}, nil)
	if err != nil {
		return false, fmt.Errorf("enqueue payroll run: %w", err)
	}
	return true, nil
}

// noopQueue is used when River is unavailable (e.g. DB_DRIVER=sqlite).
// Enqueue reports false so callers run the work inline.
type noopQueue struct{ log *slog.Logger }

func (n *noopQueue) Start(_ context.Context) error {
	n.log.Info("worker queue disabled (sqlite driver — River requires postgres)")
	return nil
}
func (n *noopQueue) Stop(_ context.Context) error { return nil }
func (n *noopQueue) EnqueuePayrollRun(_ context.Context, _ string) (bool, error) {
	return false, nil
}

// New creates a queue implementation appropriate for the given driver.
//   - "postgres": returns a fully-functional River client backed by pool.
//   - anything else: returns a no-op queue that logs a startup notice.
//
// pool may be nil when driver != "postgres".
func New(ctx context.Context, pool *pgxpool.Pool, driver string, concurrency int, runner PayrollRunner, log *slog.Logger) (Queue, error) {
	if driver != "postgres" {
		return &noopQueue{log: log}, nil
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, &payrollRunWorker{runner: runner, log: log})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: concurrency},
		},
		Workers: workers,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return &Client{client: client, log: log}, nil
}

// MigrateRiver runs River's built-in schema migrations against the given pool.
// Only call this when DB_DRIVER=postgres.
func MigrateRiver(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("run river migrations: %w", err)
	}
	return nil
}
