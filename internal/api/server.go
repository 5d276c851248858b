// Package api exposes the hooks and the audit log over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/hooks"
	"github.com/vietddude/relihub/internal/infra/storage"
)

const requestTimeout = 2 * time.Minute

// ToolHook handles agent tool output.
type ToolHook interface {
	Handle(ctx context.Context, toolName, output string) hooks.HookResult
}

// TaskHook tracks upstream task executions.
type TaskHook interface {
	OnTaskStarted(taskID, workflowName string, params map[string]any) string
	OnTaskCompleted(ctx context.Context, monitorID string, statusCode *int, response string, durationSeconds float64) hooks.HookExecutionResult
}

// EventQuerier reads the audit log.
type EventQuerier interface {
	Query(ctx context.Context, filter storage.EventFilter) ([]*domain.AuditEvent, error)
}

// HealthHandler serves the health endpoints.
type HealthHandler interface {
	HandleHealth(w http.ResponseWriter, r *http.Request)
	HandleDetailed(w http.ResponseWriter, r *http.Request)
}

// Handler implements the HTTP endpoints.
type Handler struct {
	tools  ToolHook
	tasks  TaskHook
	events EventQuerier
	health HealthHandler
	log    *slog.Logger
}

// NewHandler creates a handler. health may be nil.
func NewHandler(tools ToolHook, tasks TaskHook, events EventQuerier, health HealthHandler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		tools:  tools,
		tasks:  tasks,
		events: events,
		health: health,
		log:    logger.With("component", "api"),
	}
}

// Routes builds the chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if h.health != nil {
		r.Get("/health", h.health.HandleHealth)
		r.Get("/health/detailed", h.health.HandleDetailed)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Post("/hooks/tool-output", h.handleToolOutput)
		r.Post("/tasks", h.handleTaskStarted)
		r.Post("/tasks/{monitorID}/complete", h.handleTaskCompleted)
		r.Get("/events", h.handleEvents)
	})
	return r
}

// Server owns the HTTP listener.
type Server struct {
	server *http.Server
}

// NewServer creates a server on the given port.
func NewServer(handler *Handler, port int) *Server {
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start blocks serving requests until Stop is called.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
