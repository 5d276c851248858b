package domain

import "time"

// FailureType classifies an upstream task execution outcome.
type FailureType string

const (
	FailureExecutionTimeout FailureType = "execution_timeout"
	FailureAuth             FailureType = "auth_failure"
	FailureGatewayTimeout   FailureType = "gateway_timeout"
	FailureWebhook          FailureType = "webhook_failure"
	FailureUnknown          FailureType = "unknown_error"
	FailureNone             FailureType = "no_failure"
)

// TaskRegistration correlates a started upstream task with its later result.
type TaskRegistration struct {
	MonitorID    string
	TaskID       string
	WorkflowName string
	InputParams  map[string]any
	RegisteredAt time.Time
	// Implicit is set when the entry was created by a report without a
	// matching registration.
	Implicit bool
}

// MonitorResult is the classification of one reported task outcome.
type MonitorResult struct {
	FailureDetected      bool           `json:"failure_detected"`
	FailureType          FailureType    `json:"failure_type"`
	MonitorID            string         `json:"monitor_id"`
	TaskID               string         `json:"task_id"`
	WorkflowName         string         `json:"workflow_name"`
	StatusCode           *int           `json:"status_code"`
	DurationSeconds      float64        `json:"duration_seconds"`
	Reason               string         `json:"reason"`
	EventID              EventID        `json:"event_id,omitempty"`
	ImplicitRegistration bool           `json:"implicit_registration,omitempty"`
	InputParams          map[string]any `json:"input_params,omitempty"`
}
