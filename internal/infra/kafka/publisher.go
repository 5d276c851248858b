// Package kafka publishes stored audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/metrics"
)

// Config holds Kafka connection configuration. An empty broker list
// disables publishing.
type Config struct {
	Brokers         []string      `yaml:"brokers"`
	Topic           string        `yaml:"topic"`
	MaxBuffered     int           `yaml:"max_buffered"`     // records held while brokers are unreachable
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"` // per record, including retries
}

const (
	DefaultTopic           = "relihub.audit-events"
	DefaultMaxBuffered     = 10000
	DefaultDeliveryTimeout = 30 * time.Second
)

// Publisher produces audit events asynchronously, keyed by project so that a
// project's events stay ordered within a partition.
type Publisher struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = DefaultMaxBuffered
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.RecordRetries(5),
		kgo.MaxBufferedRecords(cfg.MaxBuffered),
		kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		log:    logger.With("component", "kafka_publisher"),
	}, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish queues the event for delivery and never waits for buffer space.
// Records that do not fit the buffer, or are not delivered in time, are
// logged and counted.
func (p *Publisher) Publish(ctx context.Context, event *domain.AuditEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	rec := &kgo.Record{
		Key:   []byte(event.ProjectID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(strconv.FormatInt(int64(event.ID), 10))},
		},
	}

	p.client.TryProduce(context.WithoutCancel(ctx), rec, func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		reason := "delivery_failed"
		if errors.Is(err, kgo.ErrMaxBuffered) {
			reason = "buffer_full"
		}
		metrics.AuditSinkDrops.WithLabelValues("kafka", reason).Inc()
		p.log.Warn("Failed to deliver audit event",
			"event_id", event.ID,
			"event_type", event.EventType,
			"error", err,
		)
	})
	return nil
}

// Ping checks that a broker is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes pending records and closes the client.
func (p *Publisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
