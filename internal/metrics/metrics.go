package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ToolOutputsProcessed tracks tool output hook invocations by outcome
	ToolOutputsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relihub_tool_outputs_processed_total",
			Help: "Total number of tool outputs processed by the tool output hook",
		},
		[]string{"tool", "outcome"},
	)

	// KeywordDetections tracks accepted keyword detections per category
	KeywordDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relihub_keyword_detections_total",
			Help: "Total number of keyword detections",
		},
		[]string{"category"},
	)

	// WorkItemTransitions tracks work item status changes
	WorkItemTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relihub_work_item_transitions_total",
			Help: "Total number of work item status transitions",
		},
		[]string{"new_status"},
	)

	// TaskFailures tracks classified upstream failures
	TaskFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relihub_task_failures_total",
			Help: "Total number of classified upstream task failures",
		},
		[]string{"target_task", "failure_type"},
	)

	// FallbackAttempts tracks fallback tier attempts
	FallbackAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relihub_fallback_attempts_total",
			Help: "Total number of fallback tier attempts",
		},
		[]string{"method", "result"},
	)

	// FallbackLatency tracks fallback tier latency
	FallbackLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relihub_fallback_latency_seconds",
			Help:    "Fallback tier attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// RegistryEntries tracks the size of the task registry
	RegistryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relihub_task_registry_entries",
			Help: "Number of task registrations held in memory",
		},
	)

	// AuditAppendErrors tracks audit events that could not be stored
	AuditAppendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relihub_audit_append_errors_total",
			Help: "Total number of audit events that failed to persist",
		},
		[]string{"event_type"},
	)

	// AuditSinkDrops tracks audit events a secondary sink could not deliver
	AuditSinkDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relihub_audit_sink_drops_total",
			Help: "Total number of audit events dropped by a secondary sink",
		},
		[]string{"sink", "reason"},
	)

	// DBConnectionPoolUsage tracks the percentage of used connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relihub_db_connection_pool_usage_percent",
			Help: "Percentage of database connection pool in use",
		},
	)
)
