package hooks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/relihub/internal/audit"
	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/detection"
	"github.com/vietddude/relihub/internal/infra/storage"
	"github.com/vietddude/relihub/internal/infra/storage/memory"
	"github.com/vietddude/relihub/internal/workitem"
)

type toolFixture struct {
	hook  *ToolOutputHook
	store *audit.Store
	items *memory.WorkItemRepo
}

func newToolFixture(t *testing.T, items ...*domain.WorkItem) *toolFixture {
	t.Helper()
	mem := memory.NewMemoryStorage()
	repo := memory.NewWorkItemRepo(mem)
	for _, it := range items {
		require.NoError(t, repo.Save(context.Background(), it))
	}
	store := audit.NewStore(memory.NewEventRepo(mem), nil)
	hook := NewToolOutputHook(
		ToolOutputConfig{ProjectID: "proj"},
		detection.New(),
		workitem.NewUpdater(repo, workitem.Config{}, nil),
		store,
		nil,
	)
	return &toolFixture{hook: hook, store: store, items: repo}
}

func (f *toolFixture) events(t *testing.T) []*domain.AuditEvent {
	t.Helper()
	events, err := f.store.Query(context.Background(), storage.EventFilter{ProjectID: "proj"})
	require.NoError(t, err)
	return events
}

type panickingDetector struct{}

func (panickingDetector) Best(string) *domain.DetectionResult { panic("index out of range") }

func TestHandle_EmptyOutput(t *testing.T) {
	f := newToolFixture(t)
	res := f.hook.Handle(context.Background(), "bash", "")
	assert.Equal(t, ReasonNoKeywordsFound, res.Reason)
	assert.False(t, res.Processed)
	assert.Equal(t, domain.NoEventID, res.EventID)
	assert.Empty(t, f.events(t))
}

func TestHandle_UnsupportedTool(t *testing.T) {
	f := newToolFixture(t)
	res := f.hook.Handle(context.Background(), "WebFetch", "git commit -m 'x'")
	assert.Equal(t, ReasonUnsupportedTool, res.Reason)
	assert.Empty(t, f.events(t))
}

func TestHandle_ToolNameCaseInsensitive(t *testing.T) {
	f := newToolFixture(t)
	assert.True(t, f.hook.Supports("Bash"))
	assert.True(t, f.hook.Supports("MultiEdit"))
	assert.False(t, f.hook.Supports("Read"))
}

func TestHandle_NoKeyword(t *testing.T) {
	f := newToolFixture(t)
	res := f.hook.Handle(context.Background(), "bash", "total 0\ndrwxr-xr-x  2 root root")
	assert.Equal(t, ReasonNoKeywordsFound, res.Reason)
	assert.Empty(t, f.events(t))
}

func TestHandle_CompletesWorkItem(t *testing.T) {
	f := newToolFixture(t, &domain.WorkItem{
		ID: "todo-1", Title: "Commit feature", Status: domain.WorkItemInProgress, CreatedAt: time.Now(),
	})

	res := f.hook.Handle(context.Background(), "Bash", "git add -A && git commit -m 'feat'")
	require.True(t, res.Processed)
	require.NotNil(t, res.Update)
	assert.True(t, res.Update.Updated)
	assert.Equal(t, domain.EventActionItemCompleted, res.EventType)
	assert.True(t, res.EventID.Valid())

	item, err := f.items.Get(context.Background(), "todo-1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkItemCompleted, item.Status)

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, res.EventID, events[0].ID)
	assert.Equal(t, domain.EventStatusSuccess, events[0].Status)
	assert.Equal(t, domain.SourceHook, events[0].DetectedFrom)
	assert.NotNil(t, events[0].ResolvedAt)
	evidence := events[0].Evidence.(domain.ActionItemEvidence)
	assert.Equal(t, "todo-1", evidence.TodoID)
	assert.Equal(t, domain.CategoryCommit, evidence.Category)
}

func TestHandle_PendingReview(t *testing.T) {
	f := newToolFixture(t, &domain.WorkItem{
		ID: "todo-1", Status: domain.WorkItemInProgress, CreatedAt: time.Now(),
	})

	// A failure indicator ~100 bytes away costs 20 points: 85 - 20 = 65
	output := "git push origin feature" + strings.Repeat(" ", 90) + "error"
	res := f.hook.Handle(context.Background(), "bash", output)

	require.NotNil(t, res.Detection)
	assert.Equal(t, 65, res.Detection.Confidence)
	assert.Equal(t, domain.EventActionItemPendingReview, res.EventType)

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventStatusPendingReview, events[0].Status)
}

func TestHandle_LowConfidenceStillLogged(t *testing.T) {
	f := newToolFixture(t, &domain.WorkItem{
		ID: "todo-1", Status: domain.WorkItemInProgress, CreatedAt: time.Now(),
	})

	res := f.hook.Handle(context.Background(), "bash", "git push origin main: error: failed to push some refs")
	require.NotNil(t, res.Update)
	assert.False(t, res.Update.Updated)
	assert.Equal(t, string(domain.ReasonLowConfidence), res.Reason)
	assert.Equal(t, domain.EventNoActionTaken, res.EventType)

	item, err := f.items.Get(context.Background(), "todo-1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkItemInProgress, item.Status)

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventStatusSkipped, events[0].Status)
	assert.Nil(t, events[0].ResolvedAt)
}

func TestHandle_NoMatchingTodos(t *testing.T) {
	f := newToolFixture(t)
	res := f.hook.Handle(context.Background(), "bash", "Build successful")
	assert.Equal(t, string(domain.ReasonNoMatchingTodos), res.Reason)
	assert.Equal(t, domain.EventNoActionTaken, res.EventType)
	assert.Len(t, f.events(t), 1)
}

func TestHandle_PanicBecomesErrorReason(t *testing.T) {
	store := audit.NewStore(memory.NewEventRepo(memory.NewMemoryStorage()), nil)
	hook := NewToolOutputHook(ToolOutputConfig{}, panickingDetector{}, nil, store, nil)

	var res HookResult
	require.NotPanics(t, func() {
		res = hook.Handle(context.Background(), "bash", "anything")
	})
	assert.Equal(t, "error: index out of range", res.Reason)
	assert.Equal(t, "bash", res.ToolName)
}

func TestClassifyUpdate(t *testing.T) {
	tests := []struct {
		update    domain.UpdateResult
		eventType domain.EventType
		status    domain.EventStatus
	}{
		{domain.UpdateResult{Updated: true, NewStatus: domain.WorkItemCompleted}, domain.EventActionItemCompleted, domain.EventStatusSuccess},
		{domain.UpdateResult{Updated: true, NewStatus: domain.WorkItemPendingReview}, domain.EventActionItemPendingReview, domain.EventStatusPendingReview},
		{domain.UpdateResult{Updated: true, NewStatus: domain.WorkItemInProgress}, domain.EventActionItemUpdated, domain.EventStatusSuccess},
		{domain.UpdateResult{Reason: domain.ReasonLowConfidence}, domain.EventNoActionTaken, domain.EventStatusSkipped},
		{domain.UpdateResult{Reason: domain.ReasonNoMatchingTodos}, domain.EventNoActionTaken, domain.EventStatusSkipped},
		{domain.UpdateResult{Reason: domain.ReasonUpdateFailed}, domain.EventNoActionTaken, domain.EventStatusFailed},
		{domain.UpdateResult{Reason: domain.ReasonMemorySystemError}, domain.EventNoActionTaken, domain.EventStatusFailed},
	}
	for _, tt := range tests {
		eventType, status := classifyUpdate(tt.update)
		assert.Equal(t, tt.eventType, eventType)
		assert.Equal(t, tt.status, status)
	}
}
