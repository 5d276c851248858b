// Package executor holds the execution surfaces used by the fallback chain.
// Each surface runs a named task with parameters and reports a short summary.
package executor

import (
	"context"
	"time"
)

// Invoker runs a task on one execution surface. The timeout is also carried
// by ctx; implementations that talk to a remote runner forward it so the
// runner can stop early.
type Invoker interface {
	Invoke(ctx context.Context, taskName string, params map[string]any, timeout time.Duration) (string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, taskName string, params map[string]any, timeout time.Duration) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, taskName string, params map[string]any, timeout time.Duration) (string, error) {
	return f(ctx, taskName, params, timeout)
}

// TaskRequest is the job payload shared by the remote surfaces.
type TaskRequest struct {
	JobID          string         `json:"job_id,omitempty"`
	TaskName       string         `json:"task_name"`
	Params         map[string]any `json:"params,omitempty"`
	TimeoutSeconds float64        `json:"timeout_seconds"`
	// Deadline is when the caller stops waiting. Zero means no deadline.
	Deadline time.Time `json:"deadline,omitzero"`
}

// Budget returns how long a runner may spend on the request at now, capped
// by fallback when the request carries no timeout. It is zero or negative
// once the caller has given up.
func (r TaskRequest) Budget(now time.Time, fallback time.Duration) time.Duration {
	budget := time.Duration(r.TimeoutSeconds * float64(time.Second))
	if budget <= 0 {
		budget = fallback
	}
	if r.Deadline.IsZero() {
		return budget
	}
	return min(budget, r.Deadline.Sub(now))
}

// TaskResponse is what a runner sends back.
type TaskResponse struct {
	Success       bool   `json:"success"`
	ResultSummary string `json:"result_summary,omitempty"`
	Error         string `json:"error,omitempty"`
}
