//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/vietddude/relihub/internal/core/domain"
)

func TestPublisher_DeliversEvent(t *testing.T) {
	ctx := context.Background()

	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v23.3.3")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	broker, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	pub, err := NewPublisher(Config{Brokers: []string{broker}, Topic: "audit-test"}, nil)
	require.NoError(t, err)
	require.NoError(t, pub.EnsureTopic(ctx, 1, 1))
	require.NoError(t, pub.EnsureTopic(ctx, 1, 1), "creating an existing topic is not an error")

	ev := &domain.AuditEvent{
		ID:           7,
		EventType:    domain.EventFailureDetected,
		ProjectID:    "proj",
		Status:       domain.EventStatusFailed,
		DetectedFrom: domain.SourceMonitor,
		CreatedAt:    time.Now().UTC(),
		Evidence:     domain.FailureEvidence{TaskID: "task-1", FailureType: domain.FailureAuth},
	}
	require.NoError(t, pub.Publish(ctx, ev))
	require.NoError(t, pub.Close(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics("audit-test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	require.Empty(t, fetches.Errors())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "proj", string(records[0].Key))

	var got domain.AuditEvent
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, domain.EventID(7), got.ID)
	assert.Equal(t, "task-1", got.Evidence.(domain.FailureEvidence).TaskID)
}
