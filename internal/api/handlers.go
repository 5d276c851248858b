package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/hooks"
	"github.com/vietddude/relihub/internal/infra/storage"
)

const (
	maxBodyBytes = 4 << 20
	maxLimit     = 1000
)

type taskStartedRequest struct {
	TaskID       string         `json:"task_id"`
	WorkflowName string         `json:"workflow_name"`
	InputParams  map[string]any `json:"input_params"`
}

type taskStartedResponse struct {
	MonitorID string `json:"monitor_id"`
}

type taskCompletedRequest struct {
	StatusCode      *int    `json:"status_code"`
	Response        string  `json:"response"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type eventsResponse struct {
	Events []*domain.AuditEvent `json:"events"`
	Count  int                  `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleToolOutput(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBodyError(w, err)
		return
	}

	payload, err := hooks.DecodeToolPayload(body)
	if err != nil {
		h.log.Warn("Invalid tool output payload",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		if errors.Is(err, hooks.ErrMissingToolName) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return
	}

	res := h.tools.Handle(r.Context(), payload.ToolName, payload.Text())
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleTaskStarted(w http.ResponseWriter, r *http.Request) {
	var req taskStartedRequest
	if err := decode(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	monitorID := h.tasks.OnTaskStarted(req.TaskID, req.WorkflowName, req.InputParams)
	writeJSON(w, http.StatusCreated, taskStartedResponse{MonitorID: monitorID})
}

func (h *Handler) handleTaskCompleted(w http.ResponseWriter, r *http.Request) {
	monitorID := chi.URLParam(r, "monitorID")

	var req taskCompletedRequest
	if err := decode(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if req.DurationSeconds < 0 {
		writeError(w, http.StatusBadRequest, "duration_seconds must not be negative")
		return
	}

	res := h.tasks.OnTaskCompleted(r.Context(), monitorID, req.StatusCode, req.Response, req.DurationSeconds)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.EventFilter{
		ProjectID: q.Get("project_id"),
		EventType: domain.EventType(q.Get("event_type")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = min(limit, maxLimit)
	}

	events, err := h.events.Query(r.Context(), filter)
	if err != nil {
		h.log.Error("Failed to query events",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "failed to query events")
		return
	}
	if events == nil {
		events = []*domain.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Count: len(events)})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	// An empty body is treated as an empty object.
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
}
