// Package fallback re-executes failed upstream tasks on the job queue
// surfaces, cheapest first.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/infra/executor"
	"github.com/vietddude/relihub/internal/metrics"
)

const tracerName = "github.com/vietddude/relihub/internal/fallback"

var (
	ErrMissingTaskID = errors.New("missing task id")
	ErrNoMapping     = errors.New("no fallback task mapped for workflow")
	ErrNotConfigured = errors.New("execution surface not configured")
)

// DefaultWorkflows maps upstream workflow names to job queue task names.
var DefaultWorkflows = map[string]string{
	"video-assembly":       "assemble_video",
	"content-generation":   "generate_content",
	"thumbnail-generation": "generate_thumbnail",
	"audio-transcription":  "transcribe_audio",
	"social-publish":       "publish_social_post",
}

// Default per-tier budgets.
const (
	DefaultQueueTimeout = 1 * time.Second
	DefaultAPITimeout   = 5 * time.Second
	DefaultLocalTimeout = 30 * time.Second
)

// Tier is one execution surface in the chain.
type Tier struct {
	Method  domain.AttemptMethod
	Timeout time.Duration
	Invoker executor.Invoker
}

// DefaultTiers builds the standard three-tier chain. A nil invoker makes its
// tier fail immediately.
func DefaultTiers(queue, api, local executor.Invoker) []Tier {
	return []Tier{
		{Method: domain.MethodDirectQueue, Timeout: DefaultQueueTimeout, Invoker: queue},
		{Method: domain.MethodHTTPAPI, Timeout: DefaultAPITimeout, Invoker: api},
		{Method: domain.MethodLocalService, Timeout: DefaultLocalTimeout, Invoker: local},
	}
}

// EventAppender is the part of the audit store the router writes to.
type EventAppender interface {
	Append(ctx context.Context, event *domain.AuditEvent) domain.EventID
}

type Config struct {
	ProjectID string
	// Workflows is merged over DefaultWorkflows.
	Workflows map[string]string
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Router maps failed tasks to fallback tasks and runs the tier chain.
type Router struct {
	tiers     []Tier
	workflows map[string]string
	events    EventAppender
	project   string
	tracer    trace.Tracer
	log       *slog.Logger
}

func NewRouter(cfg Config, tiers []Tier, events EventAppender, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	workflows := maps.Clone(DefaultWorkflows)
	maps.Copy(workflows, cfg.Workflows)
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Router{
		tiers:     tiers,
		workflows: workflows,
		events:    events,
		project:   cfg.ProjectID,
		tracer:    tp.Tracer(tracerName),
		log:       logger.With("component", "fallback_router"),
	}
}

// TargetTask returns the fallback task mapped to a workflow.
func (r *Router) TargetTask(workflow string) (string, bool) {
	task, ok := r.workflows[workflow]
	return task, ok
}

// RouteFailure runs the fallback chain for a classified failure. Tiers are
// tried in order and the chain stops at the first success.
func (r *Router) RouteFailure(ctx context.Context, mr domain.MonitorResult) domain.RoutingResult {
	if mr.TaskID == "" {
		return domain.RoutingResult{Reason: ErrMissingTaskID.Error()}
	}

	target, ok := r.TargetTask(mr.WorkflowName)
	if !ok {
		reason := fmt.Sprintf("%s: %s", ErrNoMapping, mr.WorkflowName)
		r.log.Info("No fallback mapping", "task_id", mr.TaskID, "workflow", mr.WorkflowName)
		res := domain.RoutingResult{Reason: reason}
		res.EventID = r.record(ctx, mr, res, domain.EventStatusSkipped)
		return res
	}

	ctx, span := r.tracer.Start(ctx, "fallback.route")
	defer span.End()
	span.SetAttributes(
		attribute.String("task_id", mr.TaskID),
		attribute.String("workflow", mr.WorkflowName),
		attribute.String("target_task", target),
		attribute.String("failure_type", string(mr.FailureType)),
	)

	res := domain.RoutingResult{
		TargetTaskName: target,
		Attempts:       make([]domain.ExecutionResult, 0, len(r.tiers)),
	}
	for i, tier := range r.tiers {
		exec := r.attempt(ctx, tier, i+1, target, mr.InputParams)
		res.Attempts = append(res.Attempts, exec)
		res.ExecutionResult = &exec

		if exec.Success {
			res.Routed = true
			break
		}
		r.log.Warn("Fallback tier failed",
			"task_id", mr.TaskID,
			"method", tier.Method,
			"attempt", exec.AttemptNumber,
			"error", exec.ErrorMessage,
		)
	}

	status := domain.EventStatusFailed
	if res.Routed {
		status = domain.EventStatusSuccess
		res.Reason = fmt.Sprintf("executed %s via %s", target, res.ExecutionResult.AttemptMethod)
		span.SetStatus(codes.Ok, "")
	} else {
		res.Reason = fmt.Sprintf("all %d fallback tiers failed", len(res.Attempts))
		span.SetStatus(codes.Error, res.Reason)
	}

	res.EventID = r.record(ctx, mr, res, status)
	return res
}

// attempt runs one tier. The tier budget is a hard bound: an invoker that
// ignores ctx is abandoned when the budget runs out.
func (r *Router) attempt(ctx context.Context, tier Tier, number int, task string, params map[string]any) domain.ExecutionResult {
	ctx, span := r.tracer.Start(ctx, "fallback.tier")
	defer span.End()
	span.SetAttributes(
		attribute.String("method", string(tier.Method)),
		attribute.Int("attempt", number),
	)

	res := domain.ExecutionResult{
		AttemptMethod: tier.Method,
		AttemptNumber: number,
	}
	start := time.Now()

	summary, err := r.invoke(ctx, tier, task, params)

	elapsed := time.Since(start)
	res.ExecutionTimeSeconds = elapsed.Seconds()
	metrics.FallbackLatency.WithLabelValues(string(tier.Method)).Observe(elapsed.Seconds())

	if err != nil {
		res.ErrorMessage = err.Error()
		metrics.FallbackAttempts.WithLabelValues(string(tier.Method), "failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res
	}

	res.Success = true
	res.ResultSummary = summary
	metrics.FallbackAttempts.WithLabelValues(string(tier.Method), "success").Inc()
	return res
}

type invokeResult struct {
	summary string
	err     error
}

func (r *Router) invoke(ctx context.Context, tier Tier, task string, params map[string]any) (string, error) {
	if tier.Invoker == nil {
		return "", fmt.Errorf("%s: %w", tier.Method, ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, tier.Timeout)
	defer cancel()

	done := make(chan invokeResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- invokeResult{err: fmt.Errorf("%s panicked: %v", tier.Method, p)}
			}
		}()
		summary, err := tier.Invoker.Invoke(ctx, task, params, tier.Timeout)
		done <- invokeResult{summary: summary, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil && ctx.Err() != nil {
			return "", fmt.Errorf("%s exceeded %s budget", tier.Method, tier.Timeout)
		}
		return out.summary, out.err
	case <-ctx.Done():
		return "", fmt.Errorf("%s exceeded %s budget: %w", tier.Method, tier.Timeout, ctx.Err())
	}
}

func (r *Router) record(ctx context.Context, mr domain.MonitorResult, res domain.RoutingResult, status domain.EventStatus) domain.EventID {
	attempts := make([]domain.AttemptRecord, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		attempts = append(attempts, a.Record())
	}

	ev := &domain.AuditEvent{
		EventType:    domain.EventFallbackRouted,
		ProjectID:    r.project,
		Status:       status,
		DetectedFrom: domain.SourceFallbackRouter,
		Evidence: domain.RoutingEvidence{
			TaskID:       mr.TaskID,
			WorkflowName: mr.WorkflowName,
			FailureType:  mr.FailureType,
			TargetTask:   res.TargetTaskName,
			Attempts:     attempts,
			Reason:       res.Reason,
		},
		Metadata: map[string]any{"monitor_id": mr.MonitorID},
	}
	if res.Routed {
		now := time.Now()
		ev.ResolvedAt = &now
	}
	return r.events.Append(ctx, ev)
}
