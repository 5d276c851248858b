package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/metrics"
)

type recordingAppender struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
	fail   bool
}

func (a *recordingAppender) Append(ctx context.Context, ev *domain.AuditEvent) domain.EventID {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return domain.NoEventID
	}
	a.events = append(a.events, ev)
	return domain.EventID(len(a.events))
}

func code(c int) *int { return &c }

func newMonitor(events EventAppender) *Monitor {
	return New(Config{ProjectID: "proj"}, NewRegistry(0, 0), events, nil)
}

func TestClassifier_Order(t *testing.T) {
	classify := NewClassifier(0)

	tests := []struct {
		name     string
		outcome  Outcome
		expected domain.FailureType
	}{
		{"exactly at threshold", Outcome{StatusCode: code(200), Response: "Success", DurationSeconds: 30.0}, domain.FailureNone},
		{"just over threshold", Outcome{StatusCode: code(200), Response: "Success", DurationSeconds: 30.000001}, domain.FailureExecutionTimeout},
		{"timeout beats status", Outcome{StatusCode: code(403), Response: "unauthorized", DurationSeconds: 45}, domain.FailureExecutionTimeout},
		{"403", Outcome{StatusCode: code(403), Response: "webhook"}, domain.FailureAuth},
		{"504", Outcome{StatusCode: code(504), Response: "unauthorized"}, domain.FailureGatewayTimeout},
		{"auth keyword", Outcome{StatusCode: code(500), Response: "Invalid Token supplied"}, domain.FailureAuth},
		{"auth before gateway", Outcome{Response: "permission denied by gateway"}, domain.FailureAuth},
		{"gateway keyword", Outcome{Response: "Service Unavailable"}, domain.FailureGatewayTimeout},
		{"webhook keyword", Outcome{Response: "connection refused by host"}, domain.FailureWebhook},
		{"generic error", Outcome{Response: "Error: boom"}, domain.FailureUnknown},
		{"generic failed", Outcome{Response: "job failed"}, domain.FailureUnknown},
		{"clean", Outcome{StatusCode: code(200), Response: "ok", DurationSeconds: 2}, domain.FailureNone},
		{"empty response", Outcome{}, domain.FailureNone},
		{"negative duration", Outcome{DurationSeconds: -5}, domain.FailureNone},
		{"nil status with body", Outcome{Response: "all good"}, domain.FailureNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := classify(tt.outcome)
			assert.Equal(t, tt.expected, got)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestClassifier_TimeoutPropertyAcrossInputs(t *testing.T) {
	classify := NewClassifier(0)
	responses := []string{"", "unauthorized", "gateway", "webhook", "error: x", "fine"}
	codes := []*int{nil, code(200), code(403), code(504)}

	for _, d := range []float64{0, 1, 29.999, 30.0} {
		for _, r := range responses {
			for _, c := range codes {
				got, _ := classify(Outcome{StatusCode: c, Response: r, DurationSeconds: d})
				assert.NotEqual(t, domain.FailureExecutionTimeout, got, "d=%v", d)
			}
		}
	}
	for _, d := range []float64{30.000001, 31, 3600} {
		for _, r := range responses {
			for _, c := range codes {
				got, _ := classify(Outcome{StatusCode: c, Response: r, DurationSeconds: d})
				assert.Equal(t, domain.FailureExecutionTimeout, got, "d=%v", d)
			}
		}
	}
}

func TestReport_SuccessDoesNotLog(t *testing.T) {
	events := &recordingAppender{}
	m := newMonitor(events)

	id := m.Register("task-1", "video-assembly", map[string]any{"video": "a.mp4"})
	res := m.Report(context.Background(), id, code(200), "Success", 30.0)

	assert.False(t, res.FailureDetected)
	assert.Equal(t, domain.FailureNone, res.FailureType)
	assert.Equal(t, domain.NoEventID, res.EventID)
	assert.Equal(t, "task-1", res.TaskID)
	assert.Empty(t, events.events)
}

func TestReport_FailureLogsEvent(t *testing.T) {
	events := &recordingAppender{}
	m := newMonitor(events)

	id := m.Register("task-1", "video-assembly", nil)
	long := strings.Repeat("x", 500) + " error: boom"
	res := m.Report(context.Background(), id, code(500), long, 3)

	require.True(t, res.FailureDetected)
	assert.Equal(t, domain.FailureUnknown, res.FailureType)
	assert.Equal(t, domain.EventID(1), res.EventID)

	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, domain.EventFailureDetected, ev.EventType)
	assert.Equal(t, domain.EventStatusFailed, ev.Status)
	assert.Equal(t, domain.SourceMonitor, ev.DetectedFrom)
	assert.Equal(t, "proj", ev.ProjectID)

	evidence, ok := ev.Evidence.(domain.FailureEvidence)
	require.True(t, ok)
	assert.Equal(t, "task-1", evidence.TaskID)
	assert.Equal(t, "video-assembly", evidence.WorkflowName)
	assert.Equal(t, 500, *evidence.StatusCode)
	assert.Len(t, evidence.ResponseSnippet, MaxResponseSnippet)
}

func TestReport_AuditFailureLeavesNoEventID(t *testing.T) {
	m := newMonitor(&recordingAppender{fail: true})
	id := m.Register("task-1", "wf", nil)
	res := m.Report(context.Background(), id, code(403), "", 1)
	assert.True(t, res.FailureDetected)
	assert.Equal(t, domain.NoEventID, res.EventID)
}

func TestReport_ImplicitRegistration(t *testing.T) {
	events := &recordingAppender{}
	m := newMonitor(events)

	res := m.Report(context.Background(), "never-registered", code(504), "", 1)
	assert.True(t, res.ImplicitRegistration)
	assert.Equal(t, "never-registered", res.MonitorID)
	assert.Equal(t, UnknownTask, res.TaskID)
	assert.Equal(t, UnknownWorkflow, res.WorkflowName)
	assert.Equal(t, domain.FailureGatewayTimeout, res.FailureType)

	require.Len(t, events.events, 1)
	assert.True(t, events.events[0].Evidence.(domain.FailureEvidence).ImplicitRegistration)
}

func TestReport_ConcurrentDistinctIDs(t *testing.T) {
	events := &recordingAppender{}
	m := newMonitor(events)

	const n = 64
	ids := make([]string, n)
	for i := range ids {
		ids[i] = m.Register(fmt.Sprintf("task-%d", i), fmt.Sprintf("wf-%d", i), nil)
	}

	results := make([]domain.MonitorResult, n)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			duration := 1.0
			if i%2 == 0 {
				duration = 40
			}
			results[i] = m.Report(context.Background(), ids[i], code(200), "", duration)
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("task-%d", i), res.TaskID)
		assert.Equal(t, fmt.Sprintf("wf-%d", i), res.WorkflowName)
		assert.False(t, res.ImplicitRegistration)
		assert.Equal(t, i%2 == 0, res.FailureDetected)
	}
	assert.Len(t, events.events, n/2)
	assert.Zero(t, m.registry.Len())
}

func TestRegistry_EvictsOldestAtCapacity(t *testing.T) {
	r := NewRegistry(time.Hour, 2)
	clock := time.Now()
	r.now = func() time.Time { return clock }

	first := r.Register("a", "wf", nil)
	clock = clock.Add(time.Second)
	r.Register("b", "wf", nil)
	clock = clock.Add(time.Second)
	r.Register("c", "wf", nil)

	assert.Equal(t, 2, r.Len())
	_, implicit := r.lookupOrCreate(first)
	assert.True(t, implicit)
}

func TestRegistry_PruneOlderThan(t *testing.T) {
	r := NewRegistry(time.Minute, 10)
	clock := time.Now().Add(-2 * time.Minute)
	r.now = func() time.Time { return clock }
	r.Register("old", "wf", nil)

	clock = time.Now()
	fresh := r.Register("new", "wf", nil)

	assert.Equal(t, 1, r.PruneOlderThan(time.Now().Add(-r.Retention())))
	reg, implicit := r.lookupOrCreate(fresh)
	assert.False(t, implicit)
	assert.Equal(t, "new", reg.TaskID)
}

type staticTargets map[string]string

func (t staticTargets) TargetTask(workflow string) (string, bool) {
	task, ok := t[workflow]
	return task, ok
}

func TestReport_FailureMetricLabels(t *testing.T) {
	m := New(Config{ProjectID: "proj", Targets: staticTargets{"video-assembly": "assemble_video"}},
		NewRegistry(0, 0), &recordingAppender{}, nil)

	mapped := metrics.TaskFailures.WithLabelValues("assemble_video", string(domain.FailureAuth))
	unmapped := metrics.TaskFailures.WithLabelValues(UnmappedWorkflow, string(domain.FailureAuth))
	mappedBefore, unmappedBefore := testutil.ToFloat64(mapped), testutil.ToFloat64(unmapped)

	m.Report(context.Background(), m.Register("t1", "video-assembly", nil), code(403), "", 1)
	for i := range 3 {
		id := m.Register(fmt.Sprintf("t%d", i+2), fmt.Sprintf("caller-made-%d", i), nil)
		m.Report(context.Background(), id, code(403), "", 1)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(mapped)-mappedBefore)
	assert.Equal(t, 3.0, testutil.ToFloat64(unmapped)-unmappedBefore)
	assert.Equal(t, UnmappedWorkflow, newMonitor(&recordingAppender{}).metricLabel("video-assembly"))
}
