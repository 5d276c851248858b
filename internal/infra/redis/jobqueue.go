package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/relihub/internal/infra/executor"
)

// resultTTL keeps unread results from piling up after callers give up.
const resultTTL = 10 * time.Minute

// JobQueue pushes task requests onto a Redis list and waits for the worker's
// reply on a per-job result key.
type JobQueue struct {
	rdb   *redis.Client
	queue string
}

// NewJobQueue creates a job queue on the named list.
func NewJobQueue(client *Client, queue string) *JobQueue {
	return &JobQueue{
		rdb:   client.rdb,
		queue: queue,
	}
}

// Invoke enqueues the task and blocks until a result arrives or the budget
// runs out. A job nobody picked up in time is withdrawn from the queue, and
// its deadline stops a late worker from running it.
func (q *JobQueue) Invoke(ctx context.Context, taskName string, params map[string]any, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	wait := time.Until(deadline)
	if wait <= 0 {
		return "", context.DeadlineExceeded
	}

	req := executor.TaskRequest{
		JobID:          uuid.NewString(),
		TaskName:       taskName,
		Params:         params,
		TimeoutSeconds: timeout.Seconds(),
		Deadline:       deadline,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.push(ctx, data); err != nil {
		return "", err
	}

	res, err := q.rdb.BLPop(ctx, wait, resultKey(q.queue, req.JobID)).Result()
	if err != nil {
		q.withdraw(context.WithoutCancel(ctx), data)
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("job %s: no result within %s", req.JobID, timeout)
		}
		return "", fmt.Errorf("blpop failed: %w", err)
	}

	// BLPOP returns [key, value]
	var out executor.TaskResponse
	if err := json.Unmarshal([]byte(res[1]), &out); err != nil {
		return "", fmt.Errorf("invalid job result: %w", err)
	}
	if !out.Success {
		if out.Error == "" {
			out.Error = "job reported failure"
		}
		return "", errors.New(out.Error)
	}
	return out.ResultSummary, nil
}

// Enqueue pushes a request onto the queue.
func (q *JobQueue) Enqueue(ctx context.Context, req executor.TaskRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.push(ctx, data)
}

func (q *JobQueue) push(ctx context.Context, data []byte) error {
	if err := q.rdb.LPush(ctx, queueKey(q.queue), data).Err(); err != nil {
		return fmt.Errorf("lpush failed: %w", err)
	}
	return nil
}

// withdraw removes a job that is still waiting in the queue. A job a worker
// already popped is not affected.
func (q *JobQueue) withdraw(ctx context.Context, data []byte) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = q.rdb.LRem(ctx, queueKey(q.queue), 1, data).Err()
}

// Dequeue pops the oldest request, waiting up to wait. It returns nil when
// the queue stayed empty.
func (q *JobQueue) Dequeue(ctx context.Context, wait time.Duration) (*executor.TaskRequest, error) {
	res, err := q.rdb.BRPop(ctx, wait, queueKey(q.queue)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("brpop failed: %w", err)
	}

	var req executor.TaskRequest
	if err := json.Unmarshal([]byte(res[1]), &req); err != nil {
		return nil, fmt.Errorf("invalid job payload: %w", err)
	}
	return &req, nil
}

// Complete publishes the result of a job for the waiting caller.
func (q *JobQueue) Complete(ctx context.Context, jobID string, resp executor.TaskResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	key := resultKey(q.queue, jobID)
	pipe := q.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, resultTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	return nil
}

// Depth returns the number of queued requests.
func (q *JobQueue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, queueKey(q.queue)).Result()
}
