package hooks

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vietddude/relihub/internal/core/domain"
)

// Reasons reported by the reliability hook.
const (
	ReasonNoFailure      = "no_failure"
	ReasonMissingTaskID  = "missing_task_id"
	ReasonRecovered      = "recovered"
	ReasonRecoveryFailed = "recovery_failed"
)

// TaskMonitor registers upstream tasks and classifies their outcomes.
type TaskMonitor interface {
	Register(taskID, workflowName string, params map[string]any) string
	Report(ctx context.Context, monitorID string, statusCode *int, response string, durationSeconds float64) domain.MonitorResult
}

// FailureRouter re-executes a failed task through the fallback chain.
type FailureRouter interface {
	RouteFailure(ctx context.Context, mr domain.MonitorResult) domain.RoutingResult
}

// HookExecutionResult is the outcome of one upstream task lifecycle.
type HookExecutionResult struct {
	MonitorID         string                `json:"monitor_id"`
	Monitor           domain.MonitorResult  `json:"monitor"`
	Routing           *domain.RoutingResult `json:"routing,omitempty"`
	RecoveryAttempted bool                  `json:"recovery_attempted"`
	Recovered         bool                  `json:"recovered"`
	EventIDs          []domain.EventID      `json:"event_ids"`
	Reason            string                `json:"reason"`
}

// ReliabilityHook ties the task monitor to the fallback router.
type ReliabilityHook struct {
	monitor TaskMonitor
	router  FailureRouter
	events  EventAppender
	project string
	log     *slog.Logger
}

func NewReliabilityHook(
	projectID string,
	monitor TaskMonitor,
	router FailureRouter,
	events EventAppender,
	logger *slog.Logger,
) *ReliabilityHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReliabilityHook{
		monitor: monitor,
		router:  router,
		events:  events,
		project: projectID,
		log:     logger.With("component", "reliability_hook"),
	}
}

// OnTaskStarted registers a task and returns the monitor id to report with.
func (h *ReliabilityHook) OnTaskStarted(taskID, workflowName string, params map[string]any) string {
	return h.monitor.Register(taskID, workflowName, params)
}

// OnTaskCompleted classifies the outcome and, for failures, runs recovery.
// Cancelling ctx does not interrupt a recovery that has started.
func (h *ReliabilityHook) OnTaskCompleted(
	ctx context.Context,
	monitorID string,
	statusCode *int,
	response string,
	durationSeconds float64,
) (res HookExecutionResult) {
	ctx = context.WithoutCancel(ctx)
	res.MonitorID = monitorID
	res.EventIDs = []domain.EventID{}

	ctx, span := tracer.Start(ctx, "hooks.task_completed")
	defer span.End()
	span.SetAttributes(attribute.String("monitor_id", monitorID))

	defer func() {
		if p := recover(); p != nil {
			h.log.Error("Reliability hook panicked", "monitor_id", monitorID, "panic", p)
			res.Reason = fmt.Sprintf("error: %v", p)
			span.SetStatus(codes.Error, res.Reason)
		}
	}()

	mr := h.monitor.Report(ctx, monitorID, statusCode, response, durationSeconds)
	res.Monitor = mr
	res.EventIDs = appendValid(res.EventIDs, mr.EventID)
	span.SetAttributes(attribute.String("failure_type", string(mr.FailureType)))

	if !mr.FailureDetected {
		res.Reason = ReasonNoFailure
		return res
	}
	if mr.TaskID == "" {
		res.Reason = ReasonMissingTaskID
		return res
	}

	routing := h.router.RouteFailure(ctx, mr)
	res.Routing = &routing
	res.RecoveryAttempted = true
	res.EventIDs = appendValid(res.EventIDs, routing.EventID)

	res.Recovered = routing.ExecutionResult != nil && routing.ExecutionResult.Success
	status := domain.EventStatusFailed
	res.Reason = ReasonRecoveryFailed
	if res.Recovered {
		status = domain.EventStatusSuccess
		res.Reason = ReasonRecovered
	}

	evidence := domain.RecoveryEvidence{
		MonitorID:      mr.MonitorID,
		TaskID:         mr.TaskID,
		WorkflowName:   mr.WorkflowName,
		FailureType:    mr.FailureType,
		TargetTask:     routing.TargetTaskName,
		FailureEventID: mr.EventID,
		RoutingEventID: routing.EventID,
	}
	if exec := routing.ExecutionResult; exec != nil {
		evidence.AttemptMethod = exec.AttemptMethod
		evidence.AttemptNumber = exec.AttemptNumber
		evidence.ResultSummary = exec.ResultSummary
		evidence.ErrorMessage = exec.ErrorMessage
	} else {
		evidence.ErrorMessage = routing.Reason
	}

	id := h.events.Append(ctx, &domain.AuditEvent{
		EventType:    domain.EventRecoveryAttempted,
		ProjectID:    h.project,
		Status:       status,
		DetectedFrom: domain.SourceFallbackRouter,
		Evidence:     evidence,
		ResolvedAt:   resolvedAt(status),
	})
	res.EventIDs = appendValid(res.EventIDs, id)

	h.log.Info("Recovery attempted",
		"monitor_id", mr.MonitorID,
		"task_id", mr.TaskID,
		"workflow", mr.WorkflowName,
		"failure_type", mr.FailureType,
		"recovered", res.Recovered,
	)
	if !res.Recovered {
		span.SetStatus(codes.Error, routing.Reason)
	}
	return res
}

func appendValid(ids []domain.EventID, id domain.EventID) []domain.EventID {
	if id.Valid() {
		return append(ids, id)
	}
	return ids
}
