// Package control wires storage, hooks and transports into a running hub.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/relihub/internal/api"
	"github.com/vietddude/relihub/internal/audit"
	"github.com/vietddude/relihub/internal/core/config"
	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/core/worker"
	"github.com/vietddude/relihub/internal/detection"
	"github.com/vietddude/relihub/internal/fallback"
	"github.com/vietddude/relihub/internal/health"
	"github.com/vietddude/relihub/internal/hooks"
	"github.com/vietddude/relihub/internal/infra/executor"
	"github.com/vietddude/relihub/internal/infra/kafka"
	redisclient "github.com/vietddude/relihub/internal/infra/redis"
	"github.com/vietddude/relihub/internal/infra/storage"
	"github.com/vietddude/relihub/internal/infra/storage/postgres"
	"github.com/vietddude/relihub/internal/infra/tracing"
	"github.com/vietddude/relihub/internal/monitor"
	"github.com/vietddude/relihub/internal/workitem"
)

const (
	shutdownTimeout = 10 * time.Second
	topicTimeout    = 5 * time.Second
)

// ErrQueueUnavailable is returned when a queue worker is requested without a
// reachable Redis.
var ErrQueueUnavailable = errors.New("job queue is not configured")

// Hub is the main application struct that owns every component.
type Hub struct {
	cfg      *config.AppConfig
	repos    *repositories
	events   *audit.Store
	tools    *hooks.ToolOutputHook
	tasks    *hooks.ReliabilityHook
	registry *monitor.Registry
	pruner   *worker.Pruner
	health   *health.Monitor
	server   *api.Server

	redis     *redisclient.Client
	queue     *redisclient.JobQueue
	api       *executor.HTTPInvoker
	local     *executor.GRPCInvoker
	publisher *kafka.Publisher
	tracing   *tracing.Provider

	log *slog.Logger
}

// New creates a Hub with all dependencies initialized. Optional transports
// that cannot be reached are logged and left disabled.
func New(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (_ *Hub, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{cfg: cfg, log: logger}
	defer func() {
		if err != nil {
			_ = h.Close(context.Background())
		}
	}()

	// 0. Tracing
	h.tracing, err = tracing.Setup(cfg.Tracing)
	if err != nil {
		return nil, err
	}

	// 1. Storage
	h.repos, err = openStorage(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	checks := []health.Check{{Name: "storage", Critical: true, Probe: h.repos.ping}}

	// 2. Audit fan-out
	var sinks []audit.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		h.publisher, err = kafka.NewPublisher(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		topicCtx, cancel := context.WithTimeout(ctx, topicTimeout)
		if terr := h.publisher.EnsureTopic(topicCtx, 3, 1); terr != nil {
			logger.Warn("Failed to ensure audit topic", "error", terr)
		}
		cancel()
		sinks = append(sinks, h.publisher)
		checks = append(checks, health.Check{Name: "kafka", Probe: h.publisher.Ping})
	}
	h.events = audit.NewStore(h.repos.events, logger, sinks...)

	// 3. Tool output pipeline
	h.tools = hooks.NewToolOutputHook(
		hooks.ToolOutputConfig{ProjectID: cfg.ProjectID, SupportedTools: cfg.Tools.Supported},
		detection.New(),
		workitem.NewUpdater(h.repos.items, cfg.Updater, logger),
		h.events,
		logger,
	)

	// 4. Fallback tiers
	var queueInv, apiInv, localInv executor.Invoker
	if cfg.Redis.URL != "" {
		client, rerr := redisclient.NewClient(cfg.Redis)
		if rerr != nil {
			logger.Warn("Failed to connect to Redis, queue tier disabled", "error", rerr)
		} else {
			h.redis = client
			h.queue = redisclient.NewJobQueue(client, cfg.Fallback.Queue.Name)
			queueInv = h.queue
			checks = append(checks, health.Check{Name: "redis", Probe: client.Ping})
		}
	}
	if cfg.Fallback.API.URL != "" {
		h.api = executor.NewHTTPInvoker(cfg.Fallback.API.URL)
		apiInv = h.api
	}
	if cfg.Fallback.Local.Address != "" {
		h.local, err = executor.NewGRPCInvoker(cfg.Fallback.Local.Address)
		if err != nil {
			return nil, err
		}
		localInv = h.local
	}
	tiers := []fallback.Tier{
		{Method: domain.MethodDirectQueue, Timeout: cfg.Fallback.Queue.Timeout, Invoker: queueInv},
		{Method: domain.MethodHTTPAPI, Timeout: cfg.Fallback.API.Timeout, Invoker: apiInv},
		{Method: domain.MethodLocalService, Timeout: cfg.Fallback.Local.Timeout, Invoker: localInv},
	}
	fbCfg := fallback.Config{ProjectID: cfg.ProjectID, Workflows: cfg.Fallback.Workflows}
	if h.tracing != nil {
		fbCfg.TracerProvider = h.tracing
	}
	router := fallback.NewRouter(
		fbCfg,
		tiers, h.events, logger,
	)

	// 5. Upstream task pipeline
	h.registry = monitor.NewRegistry(cfg.Monitor.RegistryTTL, cfg.Monitor.RegistryMaxEntries)
	h.pruner = worker.NewPruner("task_registry", h.registry, cfg.Monitor.SweepInterval)
	mon := monitor.New(
		monitor.Config{ProjectID: cfg.ProjectID, TimeoutThreshold: cfg.Monitor.TimeoutThreshold, Targets: router},
		h.registry, h.events, logger,
	)
	h.tasks = hooks.NewReliabilityHook(cfg.ProjectID, mon, router, h.events, logger)

	// 6. HTTP surface
	h.health = health.NewMonitor(checks...)
	h.server = api.NewServer(api.NewHandler(h.tools, h.tasks, h.events, h.health, logger), cfg.Server.Port)

	logger.Info("Hub initialized",
		"project", cfg.ProjectID,
		"storage", cfg.Database.Driver,
		"queue_tier", queueInv != nil,
		"api_tier", apiInv != nil,
		"local_tier", localInv != nil,
		"kafka", h.publisher != nil,
		"tracing", h.tracing != nil,
	)
	return h, nil
}

// Events returns the audit store.
func (h *Hub) Events() *audit.Store { return h.events }

// Items returns the work item repository.
func (h *Hub) Items() WorkItemStore { return h.repos.items }

// ToolHook returns the tool output pipeline.
func (h *Hub) ToolHook() *hooks.ToolOutputHook { return h.tools }

// TaskHook returns the upstream task pipeline.
func (h *Hub) TaskHook() *hooks.ReliabilityHook { return h.tasks }

// QueryEvents reads the audit log.
func (h *Hub) QueryEvents(ctx context.Context, filter storage.EventFilter) ([]*domain.AuditEvent, error) {
	return h.events.Query(ctx, filter)
}

// Run serves HTTP and runs background workers until ctx is cancelled or one
// of them fails.
func (h *Hub) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.log.Info("Starting HTTP server", "port", h.cfg.Server.Port)
		if err := h.server.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return h.server.Stop(shutdownCtx)
	})

	g.Go(func() error {
		h.pruner.Start(gctx)
		return nil
	})

	if h.repos.sql != nil && h.cfg.Database.Driver == config.DriverPostgres {
		postgres.StartMetricsCollector(gctx, h.repos.sql)
	}

	return g.Wait()
}

// QueueWorker builds a worker that drains the job queue, running each job on
// the local service when configured and on the task API otherwise.
func (h *Hub) QueueWorker(cfg worker.QueueWorkerConfig) (*worker.QueueWorker, error) {
	if h.queue == nil {
		return nil, ErrQueueUnavailable
	}

	var backend executor.Invoker
	switch {
	case h.local != nil:
		backend = h.local
	case h.api != nil:
		backend = h.api
	default:
		return nil, errors.New("no backend configured for queued jobs: set fallback.local.address or fallback.api.url")
	}
	return worker.NewQueueWorker(cfg, h.queue, backend, h.log), nil
}

// Close releases every connection the hub opened.
func (h *Hub) Close(ctx context.Context) error {
	h.log.Info("Stopping hub...")

	var errs []error
	if h.publisher != nil {
		errs = append(errs, h.publisher.Close(ctx))
	}
	if h.local != nil {
		errs = append(errs, h.local.Close())
	}
	if h.redis != nil {
		errs = append(errs, h.redis.Close())
	}
	if h.repos != nil && h.repos.sql != nil {
		errs = append(errs, h.repos.sql.Close())
	}
	errs = append(errs, h.tracing.Shutdown(ctx))
	return errors.Join(errs...)
}
