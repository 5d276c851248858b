package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/infra/storage"
)

type MemoryStorage struct {
	events []*domain.AuditEvent
	nextID domain.EventID
	items  map[string]*domain.WorkItem
	mu     sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items: make(map[string]*domain.WorkItem),
	}
}

// Ping always succeeds for the in-process store.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// -----------------------------------------------------------------------------
// Event Repository
// -----------------------------------------------------------------------------

type EventRepo struct {
	store *MemoryStorage
}

func NewEventRepo(store *MemoryStorage) *EventRepo {
	return &EventRepo{store: store}
}

func (r *EventRepo) Append(ctx context.Context, event *domain.AuditEvent) (domain.EventID, error) {
	if event == nil {
		return domain.NoEventID, fmt.Errorf("nil event")
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextID++
	stored := cloneEvent(event)
	stored.ID = r.store.nextID
	r.store.events = append(r.store.events, stored)
	return stored.ID, nil
}

func (r *EventRepo) Query(ctx context.Context, filter storage.EventFilter) ([]*domain.AuditEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	limit := filter.EffectiveLimit()
	out := make([]*domain.AuditEvent, 0, min(limit, len(r.store.events)))
	for i := len(r.store.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := r.store.events[i]
		if filter.ProjectID != "" && ev.ProjectID != filter.ProjectID {
			continue
		}
		if filter.EventType != "" && ev.EventType != filter.EventType {
			continue
		}
		out = append(out, cloneEvent(ev))
	}
	return out, nil
}

func cloneEvent(ev *domain.AuditEvent) *domain.AuditEvent {
	c := *ev
	if ev.Metadata != nil {
		c.Metadata = maps.Clone(ev.Metadata)
	}
	if ev.ResolvedAt != nil {
		t := *ev.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// -----------------------------------------------------------------------------
// Work Item Repository
// -----------------------------------------------------------------------------

type WorkItemRepo struct {
	store *MemoryStorage
}

func NewWorkItemRepo(store *MemoryStorage) *WorkItemRepo {
	return &WorkItemRepo{store: store}
}

// Save inserts or replaces a work item.
func (r *WorkItemRepo) Save(ctx context.Context, item *domain.WorkItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *item
	r.store.items[item.ID] = &c
	return nil
}

func (r *WorkItemRepo) ListItems(ctx context.Context, status domain.WorkItemStatus) ([]*domain.WorkItem, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.WorkItem
	for _, item := range r.store.items {
		if item.Status == status {
			c := *item
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *WorkItemRepo) SetStatus(ctx context.Context, id string, from, to domain.WorkItemStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrWorkItemNotFound, id)
	}
	if item.Status != from {
		return fmt.Errorf("%w: %s is %s, not %s", storage.ErrStatusConflict, id, item.Status, from)
	}
	item.Status = to
	return nil
}

// Get returns a copy of a work item, or nil when unknown.
func (r *WorkItemRepo) Get(ctx context.Context, id string) (*domain.WorkItem, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	item, ok := r.store.items[id]
	if !ok {
		return nil, nil
	}
	c := *item
	return &c, nil
}
