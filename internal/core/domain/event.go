package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventID is the store-assigned identifier of an audit event.
// IDs are monotonic per store; zero means no event was recorded.
type EventID int64

// NoEventID is returned when an event could not be recorded.
const NoEventID EventID = 0

// Valid reports whether the id refers to a stored event.
func (id EventID) Valid() bool {
	return id > 0
}

// EventType tags what an audit event records.
type EventType string

const (
	// Tool output pipeline
	EventActionItemCompleted     EventType = "action_item_completed"
	EventActionItemPendingReview EventType = "action_item_pending_review"
	EventActionItemUpdated       EventType = "action_item_updated"
	EventNoActionTaken           EventType = "no_action_taken"

	// Upstream task pipeline
	EventFailureDetected   EventType = "n8n_failure_detected"
	EventFallbackRouted    EventType = "n8n_fallback_routed"
	EventRecoveryAttempted EventType = "n8n_recovery_attempted"
)

// EventStatus is the outcome recorded on an audit event.
type EventStatus string

const (
	EventStatusSuccess       EventStatus = "success"
	EventStatusFailed        EventStatus = "failed"
	EventStatusPendingReview EventStatus = "pending_review"
	EventStatusSkipped       EventStatus = "skipped"
)

// DetectionSource names the component that observed the outcome.
type DetectionSource string

const (
	SourceHook           DetectionSource = "hook"
	SourceMonitor        DetectionSource = "monitor"
	SourceFallbackRouter DetectionSource = "fallback_router"
)

// AuditEvent is an immutable record of a decision or observed failure.
// ResolvedAt is decided when the event is built and never set afterwards.
type AuditEvent struct {
	ID           EventID         `json:"id"`
	EventType    EventType       `json:"event_type"`
	ProjectID    string          `json:"project_id"`
	Status       EventStatus     `json:"status"`
	Evidence     Evidence        `json:"evidence"`
	DetectedFrom DetectionSource `json:"detected_from"`
	CreatedAt    time.Time       `json:"created_at"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
}

// UnmarshalJSON decodes the evidence into the struct matching EventType.
func (e *AuditEvent) UnmarshalJSON(data []byte) error {
	type alias AuditEvent
	var raw struct {
		alias
		Evidence json.RawMessage `json:"evidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = AuditEvent(raw.alias)
	evidence, err := DecodeEvidence(e.EventType, raw.Evidence)
	if err != nil {
		return fmt.Errorf("decode evidence for %s: %w", e.EventType, err)
	}
	e.Evidence = evidence
	return nil
}
