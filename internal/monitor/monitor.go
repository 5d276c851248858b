// Package monitor classifies task executions reported by the upstream
// workflow service and records the failures.
package monitor

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/metrics"
)

// MaxResponseSnippet bounds the response text kept in failure evidence.
const MaxResponseSnippet = 200

// EventAppender is the part of the audit store the monitor writes to.
type EventAppender interface {
	Append(ctx context.Context, event *domain.AuditEvent) domain.EventID
}

// UnmappedWorkflow labels failure metrics for workflows without a fallback
// mapping, which keeps caller-supplied names out of label values.
const UnmappedWorkflow = "unmapped"

// TaskMapper resolves the fallback task for a workflow.
type TaskMapper interface {
	TargetTask(workflow string) (string, bool)
}

type Config struct {
	ProjectID        string
	TimeoutThreshold float64
	// Targets labels failure metrics by mapped task. Nil labels every
	// failure as unmapped.
	Targets TaskMapper
}

// Monitor correlates task registrations with their reported outcomes.
type Monitor struct {
	registry *Registry
	classify Classifier
	events   EventAppender
	targets  TaskMapper
	project  string
	log      *slog.Logger
}

func New(cfg Config, registry *Registry, events EventAppender, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		registry: registry,
		classify: NewClassifier(cfg.TimeoutThreshold),
		events:   events,
		targets:  cfg.Targets,
		project:  cfg.ProjectID,
		log:      logger.With("component", "task_monitor"),
	}
}

// Register records a started task and returns its monitor id.
func (m *Monitor) Register(taskID, workflowName string, params map[string]any) string {
	id := m.registry.Register(taskID, workflowName, params)
	m.log.Debug("Task registered", "monitor_id", id, "task_id", taskID, "workflow", workflowName)
	return id
}

// Report classifies the outcome of a registered task. A failure is appended
// to the audit log and its id returned in the result.
func (m *Monitor) Report(
	ctx context.Context,
	monitorID string,
	statusCode *int,
	response string,
	durationSeconds float64,
) domain.MonitorResult {
	reg, implicit := m.registry.lookupOrCreate(monitorID)
	if implicit {
		m.log.Warn("Result reported for unknown monitor id, registering implicitly", "monitor_id", monitorID)
	}

	failure, reason := m.classify(Outcome{
		StatusCode:      statusCode,
		Response:        response,
		DurationSeconds: durationSeconds,
	})

	res := domain.MonitorResult{
		FailureDetected:      failure != domain.FailureNone,
		FailureType:          failure,
		MonitorID:            reg.MonitorID,
		TaskID:               reg.TaskID,
		WorkflowName:         reg.WorkflowName,
		StatusCode:           statusCode,
		DurationSeconds:      durationSeconds,
		Reason:               reason,
		ImplicitRegistration: implicit,
		InputParams:          reg.InputParams,
	}
	if !res.FailureDetected {
		return res
	}

	metrics.TaskFailures.WithLabelValues(m.metricLabel(reg.WorkflowName), string(failure)).Inc()
	m.log.Warn("Task failure detected",
		"monitor_id", reg.MonitorID,
		"task_id", reg.TaskID,
		"workflow", reg.WorkflowName,
		"failure_type", failure,
		"duration_seconds", durationSeconds,
	)

	res.EventID = m.events.Append(ctx, &domain.AuditEvent{
		EventType:    domain.EventFailureDetected,
		ProjectID:    m.project,
		Status:       domain.EventStatusFailed,
		DetectedFrom: domain.SourceMonitor,
		Evidence: domain.FailureEvidence{
			MonitorID:            reg.MonitorID,
			TaskID:               reg.TaskID,
			WorkflowName:         reg.WorkflowName,
			FailureType:          failure,
			StatusCode:           statusCode,
			DurationSeconds:      durationSeconds,
			ResponseSnippet:      truncate(response, MaxResponseSnippet),
			ImplicitRegistration: implicit,
		},
		Metadata: map[string]any{"reason": reason},
	})
	return res
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func (m *Monitor) metricLabel(workflow string) string {
	if m.targets == nil {
		return UnmappedWorkflow
	}
	if task, ok := m.targets.TargetTask(workflow); ok {
		return task
	}
	return UnmappedWorkflow
}
