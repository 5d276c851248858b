package domain

import "time"

// WorkItemStatus is the lifecycle state of an externally owned work item.
type WorkItemStatus string

const (
	WorkItemPending       WorkItemStatus = "pending"
	WorkItemInProgress    WorkItemStatus = "in_progress"
	WorkItemPendingReview WorkItemStatus = "pending_review"
	WorkItemCompleted     WorkItemStatus = "completed"
)

// WorkItem is a tracked task/todo record.
type WorkItem struct {
	ID        string         `json:"id"         db:"id"`
	Title     string         `json:"title"      db:"title"`
	Status    WorkItemStatus `json:"status"     db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// UpdateReason is the diagnostic code attached to an update that did not happen.
type UpdateReason string

const (
	ReasonLowConfidence     UpdateReason = "low_confidence"
	ReasonNoMatchingTodos   UpdateReason = "no_matching_todos"
	ReasonUpdateFailed      UpdateReason = "update_failed"
	ReasonMemorySystemError UpdateReason = "memory_system_error"
)

// UpdateResult describes what the updater did with a detection.
type UpdateResult struct {
	Updated         bool           `json:"updated"`
	TodoID          string         `json:"todo_id,omitempty"`
	OldStatus       WorkItemStatus `json:"old_status,omitempty"`
	NewStatus       WorkItemStatus `json:"new_status,omitempty"`
	Confidence      int            `json:"confidence"`
	DetectedKeyword string         `json:"detected_keyword,omitempty"`
	Reason          UpdateReason   `json:"reason,omitempty"`
}
