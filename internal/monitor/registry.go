package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/metrics"
)

const (
	DefaultRegistryTTL        = time.Hour
	DefaultRegistryMaxEntries = 10000

	UnknownTask     = "unknown_task"
	UnknownWorkflow = "unknown_workflow"
)

// Registry holds task registrations until their result is reported.
// Entries are evicted after ttl, and the oldest entries are dropped once
// maxEntries is reached.
type Registry struct {
	mu         sync.Mutex
	entries    map[string]*domain.TaskRegistration
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewRegistry(ttl time.Duration, maxEntries int) *Registry {
	if ttl <= 0 {
		ttl = DefaultRegistryTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultRegistryMaxEntries
	}
	return &Registry{
		entries:    make(map[string]*domain.TaskRegistration),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Register stores a new entry and returns its monitor id.
func (r *Registry) Register(taskID, workflowName string, params map[string]any) string {
	reg := &domain.TaskRegistration{
		MonitorID:    uuid.NewString(),
		TaskID:       taskID,
		WorkflowName: workflowName,
		InputParams:  params,
		RegisteredAt: r.now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(reg)
	return reg.MonitorID
}

// lookupOrCreate returns the entry for monitorID. An unknown id produces an
// implicit registration with placeholder identifiers. The entry is removed
// from the registry either way, since a monitor id is reported only once.
func (r *Registry) lookupOrCreate(monitorID string) (domain.TaskRegistration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reg, ok := r.entries[monitorID]; ok {
		delete(r.entries, monitorID)
		metrics.RegistryEntries.Set(float64(len(r.entries)))
		return *reg, false
	}

	return domain.TaskRegistration{
		MonitorID:    monitorID,
		TaskID:       UnknownTask,
		WorkflowName: UnknownWorkflow,
		RegisteredAt: r.now(),
		Implicit:     true,
	}, true
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Retention is how long an unreported entry is kept.
func (r *Registry) Retention() time.Duration {
	return r.ttl
}

// PruneOlderThan drops entries registered before cutoff and returns how many
// were removed.
func (r *Registry) PruneOlderThan(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, reg := range r.entries {
		if reg.RegisteredAt.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	metrics.RegistryEntries.Set(float64(len(r.entries)))
	return removed
}

func (r *Registry) insertLocked(reg *domain.TaskRegistration) {
	if len(r.entries) >= r.maxEntries {
		cutoff := r.now().Add(-r.ttl)
		for id, e := range r.entries {
			if e.RegisteredAt.Before(cutoff) {
				delete(r.entries, id)
			}
		}
	}
	for len(r.entries) >= r.maxEntries {
		r.evictOldestLocked()
	}
	r.entries[reg.MonitorID] = reg
	metrics.RegistryEntries.Set(float64(len(r.entries)))
}

func (r *Registry) evictOldestLocked() {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, e := range r.entries {
		if oldestID == "" || e.RegisteredAt.Before(oldestAt) {
			oldestID, oldestAt = id, e.RegisteredAt
		}
	}
	delete(r.entries, oldestID)
}
