package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/relihub/internal/infra/executor"
)

// ErrJobExpired is reported for jobs dequeued after their deadline.
var ErrJobExpired = errors.New("job deadline passed before execution")

// JobSource hands out queued task requests and accepts their results.
type JobSource interface {
	Dequeue(ctx context.Context, wait time.Duration) (*executor.TaskRequest, error)
	Complete(ctx context.Context, jobID string, resp executor.TaskResponse) error
}

// QueueWorkerConfig holds configuration for the queue worker.
type QueueWorkerConfig struct {
	PollWait       time.Duration // BRPOP wait per poll (default: 1s)
	ErrorSleep     time.Duration // Sleep after a source error (default: 2s)
	DefaultTimeout time.Duration // Used when a job carries no timeout (default: 30s)
}

func (c QueueWorkerConfig) withDefaults() QueueWorkerConfig {
	if c.PollWait <= 0 {
		c.PollWait = time.Second
	}
	if c.ErrorSleep <= 0 {
		c.ErrorSleep = 2 * time.Second
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	return c
}

// QueueWorker drains the direct job queue and runs each job on a backend.
type QueueWorker struct {
	cfg     QueueWorkerConfig
	source  JobSource
	backend executor.Invoker
	log     *slog.Logger
}

// NewQueueWorker creates a worker that executes dequeued jobs on backend.
func NewQueueWorker(cfg QueueWorkerConfig, source JobSource, backend executor.Invoker, logger *slog.Logger) *QueueWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueWorker{
		cfg:     cfg.withDefaults(),
		source:  source,
		backend: backend,
		log:     logger.With("component", "queue_worker"),
	}
}

// Run processes jobs until ctx is cancelled.
func (w *QueueWorker) Run(ctx context.Context) error {
	w.log.Info("Starting queue worker")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Queue worker stopped")
			return nil
		default:
		}

		req, err := w.source.Dequeue(ctx, w.cfg.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error("Failed to dequeue job", "error", err)
			sleep(ctx, w.cfg.ErrorSleep)
			continue
		}
		if req == nil {
			continue
		}

		w.process(ctx, req)
	}
}

func (w *QueueWorker) process(ctx context.Context, req *executor.TaskRequest) {
	timeout := req.Budget(time.Now(), w.cfg.DefaultTimeout)
	if timeout <= 0 {
		// The caller already moved on to the next surface.
		w.log.Warn("Skipping expired job", "job_id", req.JobID, "task", req.TaskName, "deadline", req.Deadline)
		w.complete(ctx, req, executor.TaskResponse{Error: ErrJobExpired.Error()})
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	summary, err := w.backend.Invoke(jobCtx, req.TaskName, req.Params, timeout)
	cancel()

	resp := executor.TaskResponse{Success: err == nil, ResultSummary: summary}
	if err != nil {
		resp.Error = err.Error()
		w.log.Warn("Job failed", "job_id", req.JobID, "task", req.TaskName, "error", err)
	} else {
		w.log.Debug("Job completed", "job_id", req.JobID, "task", req.TaskName)
	}
	w.complete(ctx, req, resp)
}

// complete publishes the result. The caller may have given up already; the
// result expires on its own.
func (w *QueueWorker) complete(ctx context.Context, req *executor.TaskRequest, resp executor.TaskResponse) {
	if err := w.source.Complete(context.WithoutCancel(ctx), req.JobID, resp); err != nil {
		w.log.Error("Failed to publish job result", "job_id", req.JobID, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
