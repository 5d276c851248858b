package domain

import (
	"encoding/json"
	"fmt"
)

// Evidence is the typed payload of an audit event. Each event type carries
// exactly one evidence shape; see DecodeEvidence for the mapping.
type Evidence interface {
	evidence()
}

// ActionItemEvidence backs the tool output events (action_item_*, no_action_taken).
type ActionItemEvidence struct {
	ToolName       string         `json:"tool_name"`
	Keyword        string         `json:"keyword,omitempty"`
	Category       Category       `json:"category,omitempty"`
	Confidence     int            `json:"confidence"`
	ContextSnippet string         `json:"context_snippet,omitempty"`
	TodoID         string         `json:"todo_id,omitempty"`
	OldStatus      WorkItemStatus `json:"old_status,omitempty"`
	NewStatus      WorkItemStatus `json:"new_status,omitempty"`
	Reason         UpdateReason   `json:"reason,omitempty"`
}

// FailureEvidence backs n8n_failure_detected.
type FailureEvidence struct {
	MonitorID            string      `json:"monitor_id"`
	TaskID               string      `json:"task_id"`
	WorkflowName         string      `json:"workflow_name"`
	FailureType          FailureType `json:"failure_type"`
	StatusCode           *int        `json:"status_code"`
	DurationSeconds      float64     `json:"duration_seconds"`
	ResponseSnippet      string      `json:"response_snippet"`
	ImplicitRegistration bool        `json:"implicit_registration,omitempty"`
}

// AttemptRecord is one fallback tier attempt as stored in routing evidence.
type AttemptRecord struct {
	Method          AttemptMethod `json:"method"`
	AttemptNumber   int           `json:"attempt_number"`
	Success         bool          `json:"success"`
	DurationSeconds float64       `json:"duration_seconds"`
	Error           string        `json:"error,omitempty"`
}

// RoutingEvidence backs n8n_fallback_routed.
type RoutingEvidence struct {
	TaskID       string          `json:"task_id"`
	WorkflowName string          `json:"workflow_name"`
	FailureType  FailureType     `json:"failure_type"`
	TargetTask   string          `json:"target_task,omitempty"`
	Attempts     []AttemptRecord `json:"attempts"`
	Reason       string          `json:"reason"`
}

// RecoveryEvidence backs n8n_recovery_attempted.
type RecoveryEvidence struct {
	MonitorID      string        `json:"monitor_id"`
	TaskID         string        `json:"task_id"`
	WorkflowName   string        `json:"workflow_name"`
	FailureType    FailureType   `json:"failure_type"`
	TargetTask     string        `json:"target_task,omitempty"`
	AttemptMethod  AttemptMethod `json:"attempt_method,omitempty"`
	AttemptNumber  int           `json:"attempt_number,omitempty"`
	ResultSummary  string        `json:"result_summary,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	FailureEventID EventID       `json:"failure_event_id,omitempty"`
	RoutingEventID EventID       `json:"routing_event_id,omitempty"`
}

func (ActionItemEvidence) evidence() {}
func (FailureEvidence) evidence()    {}
func (RoutingEvidence) evidence()    {}
func (RecoveryEvidence) evidence()   {}

// DecodeEvidence restores the evidence struct for an event type from JSON.
// Empty or null input yields nil evidence.
func DecodeEvidence(eventType EventType, data []byte) (Evidence, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	switch eventType {
	case EventActionItemCompleted, EventActionItemPendingReview,
		EventActionItemUpdated, EventNoActionTaken:
		var ev ActionItemEvidence
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventFailureDetected:
		var ev FailureEvidence
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventFallbackRouted:
		var ev RoutingEvidence
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventRecoveryAttempted:
		var ev RecoveryEvidence
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}
