package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/infra/storage"
)

// WorkItemRepo implements storage.WorkItemRepository.
type WorkItemRepo struct {
	store *Store
}

// NewWorkItemRepo creates a new SQL-backed work item repository.
func NewWorkItemRepo(store *Store) *WorkItemRepo {
	return &WorkItemRepo{store: store}
}

// Save inserts a work item or replaces its title and status.
func (r *WorkItemRepo) Save(ctx context.Context, item *domain.WorkItem) error {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query := r.store.db.Rebind(`
		INSERT INTO work_items (id, title, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, status = excluded.status, updated_at = excluded.updated_at
	`)
	_, err := r.store.db.ExecContext(ctx, query,
		item.ID,
		item.Title,
		string(item.Status),
		createdAt.UTC(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save work item: %w", err)
	}
	return nil
}

// ListItems returns items in a status, newest first.
func (r *WorkItemRepo) ListItems(ctx context.Context, status domain.WorkItemStatus) ([]*domain.WorkItem, error) {
	query := r.store.db.Rebind(`
		SELECT id, title, status, created_at
		FROM work_items
		WHERE status = ?
		ORDER BY created_at DESC
	`)

	var items []*domain.WorkItem
	if err := r.store.db.SelectContext(ctx, &items, query, string(status)); err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	return items, nil
}

// SetStatus moves one item from one status to another in a single
// conditional update.
func (r *WorkItemRepo) SetStatus(ctx context.Context, id string, from, to domain.WorkItemStatus) error {
	query := r.store.db.Rebind(`
		UPDATE work_items
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`)
	res, err := r.store.db.ExecContext(ctx, query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update work item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = r.store.db.GetContext(ctx, &exists, r.store.db.Rebind(`SELECT COUNT(*) FROM work_items WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to check work item %s: %w", id, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", storage.ErrWorkItemNotFound, id)
	}
	return fmt.Errorf("%w: %s", storage.ErrStatusConflict, id)
}
