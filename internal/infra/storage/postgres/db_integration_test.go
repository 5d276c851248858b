//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/infra/storage"
	"github.com/vietddude/relihub/internal/infra/storage/sqlstore"
)

func TestNewDB_MigrateAndRoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("relihub"),
		tcpostgres.WithUsername("relihub"),
		tcpostgres.WithPassword("relihub"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewDB(ctx, Config{URL: dsn, MaxConns: 4})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrations are idempotent")

	events := sqlstore.NewEventRepo(store)
	first, err := events.Append(ctx, &domain.AuditEvent{
		EventType:    domain.EventFailureDetected,
		ProjectID:    "proj",
		Status:       domain.EventStatusFailed,
		DetectedFrom: domain.SourceMonitor,
		CreatedAt:    time.Now().UTC(),
		Evidence:     domain.FailureEvidence{TaskID: "task-1", FailureType: domain.FailureAuth},
	})
	require.NoError(t, err)
	second, err := events.Append(ctx, &domain.AuditEvent{
		EventType:    domain.EventNoActionTaken,
		ProjectID:    "proj",
		Status:       domain.EventStatusSkipped,
		DetectedFrom: domain.SourceHook,
		CreatedAt:    time.Now().UTC(),
		Evidence:     domain.ActionItemEvidence{ToolName: "bash", Reason: domain.ReasonNoMatchingTodos},
	})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	got, err := events.Query(ctx, storage.EventFilter{ProjectID: "proj"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second, got[0].ID)
	assert.Equal(t, "task-1", got[1].Evidence.(domain.FailureEvidence).TaskID)

	items := sqlstore.NewWorkItemRepo(store)
	require.NoError(t, items.Save(ctx, &domain.WorkItem{
		ID: "todo-1", Title: "Commit parser", Status: domain.WorkItemInProgress, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, items.SetStatus(ctx, "todo-1", domain.WorkItemInProgress, domain.WorkItemCompleted))
	assert.ErrorIs(t, items.SetStatus(ctx, "todo-1", domain.WorkItemInProgress, domain.WorkItemPendingReview), storage.ErrStatusConflict)
	assert.ErrorIs(t, items.SetStatus(ctx, "missing", domain.WorkItemInProgress, domain.WorkItemCompleted), storage.ErrWorkItemNotFound)

	done, err := items.ListItems(ctx, domain.WorkItemCompleted)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "todo-1", done[0].ID)

	StartMetricsCollector(ctx, store)
}
