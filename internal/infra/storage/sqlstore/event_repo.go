package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/infra/storage"
)

// EventRepo implements storage.EventRepository.
type EventRepo struct {
	store *Store
}

// NewEventRepo creates a new SQL-backed audit event repository.
func NewEventRepo(store *Store) *EventRepo {
	return &EventRepo{store: store}
}

type eventRow struct {
	ID           int64      `db:"id"`
	EventType    string     `db:"event_type"`
	ProjectID    string     `db:"project_id"`
	Status       string     `db:"status"`
	Evidence     []byte     `db:"evidence"`
	DetectedFrom string     `db:"detected_from"`
	CreatedAt    time.Time  `db:"created_at"`
	ResolvedAt   *time.Time `db:"resolved_at"`
	Metadata     []byte     `db:"metadata"`
}

// Append inserts an event and returns the id assigned by the database.
func (r *EventRepo) Append(ctx context.Context, event *domain.AuditEvent) (domain.EventID, error) {
	if event == nil {
		return domain.NoEventID, fmt.Errorf("nil event")
	}

	evidence := []byte("{}")
	if event.Evidence != nil {
		b, err := json.Marshal(event.Evidence)
		if err != nil {
			return domain.NoEventID, fmt.Errorf("marshal evidence: %w", err)
		}
		evidence = b
	}
	metadata := []byte("{}")
	if len(event.Metadata) > 0 {
		b, err := json.Marshal(event.Metadata)
		if err != nil {
			return domain.NoEventID, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = b
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := r.store.db.Rebind(`
		INSERT INTO audit_events (event_type, project_id, status, evidence, detected_from, created_at, resolved_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	var id int64
	err := r.store.db.QueryRowxContext(
		ctx,
		query,
		string(event.EventType),
		event.ProjectID,
		string(event.Status),
		string(evidence),
		string(event.DetectedFrom),
		createdAt.UTC(),
		utcPtr(event.ResolvedAt),
		string(metadata),
	).Scan(&id)
	if err != nil {
		return domain.NoEventID, fmt.Errorf("failed to insert audit event: %w", err)
	}
	return domain.EventID(id), nil
}

// Query returns matching events ordered by id, newest first.
func (r *EventRepo) Query(ctx context.Context, filter storage.EventFilter) ([]*domain.AuditEvent, error) {
	var (
		conds []string
		args  []any
	)
	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, string(filter.EventType))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, event_type, project_id, status, evidence, detected_from, created_at, resolved_at, metadata FROM audit_events`)
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY id DESC LIMIT ?")
	args = append(args, filter.EffectiveLimit())

	var rows []eventRow
	if err := r.store.db.SelectContext(ctx, &rows, r.store.db.Rebind(sb.String()), args...); err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	events := make([]*domain.AuditEvent, 0, len(rows))
	for _, row := range rows {
		ev, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", row.ID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (row eventRow) toDomain() (*domain.AuditEvent, error) {
	eventType := domain.EventType(row.EventType)
	evidence, err := domain.DecodeEvidence(eventType, row.Evidence)
	if err != nil {
		return nil, err
	}

	var metadata map[string]any
	if len(row.Metadata) > 0 && string(row.Metadata) != "{}" {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &domain.AuditEvent{
		ID:           domain.EventID(row.ID),
		EventType:    eventType,
		ProjectID:    row.ProjectID,
		Status:       domain.EventStatus(row.Status),
		Evidence:     evidence,
		DetectedFrom: domain.DetectionSource(row.DetectedFrom),
		CreatedAt:    row.CreatedAt,
		ResolvedAt:   row.ResolvedAt,
		Metadata:     metadata,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
