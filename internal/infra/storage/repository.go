package storage

import (
	"context"
	"errors"

	"github.com/vietddude/relihub/internal/core/domain"
)

var (
	// ErrWorkItemNotFound is returned when a status update targets an unknown item
	ErrWorkItemNotFound = errors.New("work item not found")

	// ErrStatusConflict is returned when an item is no longer in the expected status
	ErrStatusConflict = errors.New("work item status changed concurrently")
)

// DefaultQueryLimit is used when a query does not ask for a positive limit.
const DefaultQueryLimit = 50

// EventFilter narrows an audit event query. Empty fields match everything.
type EventFilter struct {
	ProjectID string
	EventType domain.EventType
	Limit     int
}

// EffectiveLimit returns the limit to apply to a query.
func (f EventFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultQueryLimit
	}
	return f.Limit
}

// EventRepository is the append-only audit event log
type EventRepository interface {
	// Append stores the event and returns its assigned id
	Append(ctx context.Context, event *domain.AuditEvent) (domain.EventID, error)

	// Query returns matching events, newest first
	Query(ctx context.Context, filter EventFilter) ([]*domain.AuditEvent, error)
}

// WorkItemRepository is the external work-item store
type WorkItemRepository interface {
	// ListItems returns items in the given status
	ListItems(ctx context.Context, status domain.WorkItemStatus) ([]*domain.WorkItem, error)

	// SetStatus moves an item from one status to another. It fails with
	// ErrStatusConflict when the item is not in the from status.
	SetStatus(ctx context.Context, id string, from, to domain.WorkItemStatus) error
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
