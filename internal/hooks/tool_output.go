package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/detection"
	"github.com/vietddude/relihub/internal/metrics"
)

// Reasons reported by the tool output hook when nothing was processed.
const (
	ReasonUnsupportedTool = "unsupported_tool"
	ReasonNoKeywordsFound = "no_keywords_found"
)

// DefaultSupportedTools are the tools whose output is inspected.
var DefaultSupportedTools = []string{"bash", "write", "edit", "multiedit", "notebookedit"}

// KeywordDetector finds the best keyword match in tool output.
type KeywordDetector interface {
	Best(text string) *domain.DetectionResult
}

// WorkItemUpdater applies a detection to the work item store.
type WorkItemUpdater interface {
	UpdateFromDetection(ctx context.Context, det *domain.DetectionResult) domain.UpdateResult
}

// EventAppender is the part of the audit store the hooks write to.
type EventAppender interface {
	Append(ctx context.Context, event *domain.AuditEvent) domain.EventID
}

// HookResult is the outcome of one tool output hook call.
type HookResult struct {
	ToolName  string                  `json:"tool_name"`
	Processed bool                    `json:"processed"`
	Detection *domain.DetectionResult `json:"detection,omitempty"`
	Update    *domain.UpdateResult    `json:"update,omitempty"`
	EventType domain.EventType        `json:"event_type,omitempty"`
	EventID   domain.EventID          `json:"event_id,omitempty"`
	Reason    string                  `json:"reason,omitempty"`
}

type ToolOutputConfig struct {
	ProjectID      string
	SupportedTools []string
}

// ToolOutputHook turns tool output into work item transitions.
type ToolOutputHook struct {
	detector KeywordDetector
	updater  WorkItemUpdater
	events   EventAppender
	project  string
	tools    map[string]struct{}
	log      *slog.Logger
}

func NewToolOutputHook(
	cfg ToolOutputConfig,
	detector KeywordDetector,
	updater WorkItemUpdater,
	events EventAppender,
	logger *slog.Logger,
) *ToolOutputHook {
	if logger == nil {
		logger = slog.Default()
	}
	supported := cfg.SupportedTools
	if len(supported) == 0 {
		supported = DefaultSupportedTools
	}
	tools := make(map[string]struct{}, len(supported))
	for _, t := range supported {
		tools[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	return &ToolOutputHook{
		detector: detector,
		updater:  updater,
		events:   events,
		project:  cfg.ProjectID,
		tools:    tools,
		log:      logger.With("component", "tool_output_hook"),
	}
}

// Supports reports whether output from toolName is inspected.
func (h *ToolOutputHook) Supports(toolName string) bool {
	_, ok := h.tools[strings.ToLower(strings.TrimSpace(toolName))]
	return ok
}

// Handle inspects one tool invocation's output. It never panics; internal
// failures are reported as "error: <message>" in the result.
func (h *ToolOutputHook) Handle(ctx context.Context, toolName, output string) (res HookResult) {
	res.ToolName = toolName

	ctx, span := tracer.Start(ctx, "hooks.tool_output")
	defer span.End()
	span.SetAttributes(attribute.String("tool", toolName))

	defer func() {
		if p := recover(); p != nil {
			h.log.Error("Tool output hook panicked", "tool", toolName, "panic", p)
			res = HookResult{ToolName: toolName, Reason: fmt.Sprintf("error: %v", p)}
		}
		metrics.ToolOutputsProcessed.WithLabelValues(h.toolLabel(toolName), outcome(res)).Inc()
	}()

	if !h.Supports(toolName) {
		res.Reason = ReasonUnsupportedTool
		return res
	}
	if strings.TrimSpace(output) == "" {
		res.Reason = ReasonNoKeywordsFound
		return res
	}

	det := h.detector.Best(output)
	if det == nil {
		res.Reason = ReasonNoKeywordsFound
		return res
	}
	res.Detection = det
	res.Processed = true

	var update domain.UpdateResult
	if det.Confidence >= detection.MinConfidence {
		metrics.KeywordDetections.WithLabelValues(string(det.Category)).Inc()
		update = h.updater.UpdateFromDetection(ctx, det)
	} else {
		update = domain.UpdateResult{
			Confidence:      det.Confidence,
			DetectedKeyword: det.Keyword,
			Reason:          domain.ReasonLowConfidence,
		}
	}
	res.Update = &update

	eventType, status := classifyUpdate(update)
	res.EventType = eventType
	res.Reason = string(update.Reason)

	h.log.Debug("Tool output processed",
		"tool", toolName,
		"keyword", det.Keyword,
		"confidence", det.Confidence,
		"event_type", eventType,
	)

	res.EventID = h.events.Append(ctx, &domain.AuditEvent{
		EventType:    eventType,
		ProjectID:    h.project,
		Status:       status,
		DetectedFrom: domain.SourceHook,
		Evidence: domain.ActionItemEvidence{
			ToolName:       toolName,
			Keyword:        det.Keyword,
			Category:       det.Category,
			Confidence:     det.Confidence,
			ContextSnippet: det.ContextSnippet,
			TodoID:         update.TodoID,
			OldStatus:      update.OldStatus,
			NewStatus:      update.NewStatus,
			Reason:         update.Reason,
		},
		ResolvedAt: resolvedAt(status),
	})
	return res
}

// classifyUpdate picks the event type and status recorded for an update.
func classifyUpdate(u domain.UpdateResult) (domain.EventType, domain.EventStatus) {
	if !u.Updated {
		switch u.Reason {
		case domain.ReasonUpdateFailed, domain.ReasonMemorySystemError:
			return domain.EventNoActionTaken, domain.EventStatusFailed
		default:
			return domain.EventNoActionTaken, domain.EventStatusSkipped
		}
	}
	switch u.NewStatus {
	case domain.WorkItemCompleted:
		return domain.EventActionItemCompleted, domain.EventStatusSuccess
	case domain.WorkItemPendingReview:
		return domain.EventActionItemPendingReview, domain.EventStatusPendingReview
	default:
		return domain.EventActionItemUpdated, domain.EventStatusSuccess
	}
}

func (h *ToolOutputHook) toolLabel(toolName string) string {
	if h.Supports(toolName) {
		return strings.ToLower(strings.TrimSpace(toolName))
	}
	return "other"
}

func outcome(res HookResult) string {
	switch {
	case res.EventType != "":
		return string(res.EventType)
	case strings.HasPrefix(res.Reason, "error:"):
		return "error"
	case res.Reason != "":
		return res.Reason
	default:
		return "unknown"
	}
}
