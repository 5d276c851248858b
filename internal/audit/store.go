// Package audit is the append-only event store shared by both hook pipelines.
// Appending never fails from the caller's point of view: storage errors are
// logged and reported as domain.NoEventID so a pipeline's primary decision is
// never blocked by audit persistence.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/infra/storage"
	"github.com/vietddude/relihub/internal/metrics"
)

// Sink receives every event after it has been stored.
type Sink interface {
	Publish(ctx context.Context, event *domain.AuditEvent) error
}

// Store wraps an event repository with the no-fail append contract.
type Store struct {
	repo  storage.EventRepository
	sinks []Sink
	log   *slog.Logger
}

// NewStore creates an audit store. A nil logger uses slog.Default().
func NewStore(repo storage.EventRepository, logger *slog.Logger, sinks ...Sink) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:  repo,
		sinks: sinks,
		log:   logger.With("component", "audit"),
	}
}

// Append persists the event and returns its id, or NoEventID on failure.
func (s *Store) Append(ctx context.Context, event *domain.AuditEvent) (id domain.EventID) {
	if event == nil {
		return domain.NoEventID
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	defer func() {
		if r := recover(); r != nil {
			s.fail(event, fmt.Errorf("panic: %v", r))
			id = domain.NoEventID
		}
	}()

	id, err := s.repo.Append(ctx, event)
	if err != nil {
		s.fail(event, err)
		return domain.NoEventID
	}

	stored := *event
	stored.ID = id
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, &stored); err != nil {
			s.log.Warn("Audit sink publish failed",
				"event_id", id,
				"event_type", event.EventType,
				"error", err,
			)
		}
	}

	s.log.Debug("Audit event appended", "event_id", id, "event_type", event.EventType, "status", event.Status)
	return id
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, filter storage.EventFilter) ([]*domain.AuditEvent, error) {
	events, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return events, nil
}

func (s *Store) fail(event *domain.AuditEvent, err error) {
	metrics.AuditAppendErrors.WithLabelValues(string(event.EventType)).Inc()
	s.log.Error("Failed to append audit event",
		"event_type", event.EventType,
		"project_id", event.ProjectID,
		"error", err,
	)
}
