package domain

// AttemptMethod labels the execution surface of a fallback tier.
type AttemptMethod string

const (
	MethodDirectQueue  AttemptMethod = "direct_queue"
	MethodHTTPAPI      AttemptMethod = "http_api"
	MethodLocalService AttemptMethod = "local_service"
)

// ExecutionResult is the outcome of a single fallback attempt.
type ExecutionResult struct {
	Success              bool          `json:"success"`
	AttemptMethod        AttemptMethod `json:"attempt_method"`
	AttemptNumber        int           `json:"attempt_number"`
	ExecutionTimeSeconds float64       `json:"execution_time_seconds"`
	ResultSummary        string        `json:"result_summary,omitempty"`
	ErrorMessage         string        `json:"error_message,omitempty"`
}

// Record converts the result into its audit evidence form.
func (r ExecutionResult) Record() AttemptRecord {
	return AttemptRecord{
		Method:          r.AttemptMethod,
		AttemptNumber:   r.AttemptNumber,
		Success:         r.Success,
		DurationSeconds: r.ExecutionTimeSeconds,
		Error:           r.ErrorMessage,
	}
}

// RoutingResult is produced once per fallback routing call.
type RoutingResult struct {
	Routed          bool              `json:"routed"`
	TargetTaskName  string            `json:"target_task_name,omitempty"`
	ExecutionResult *ExecutionResult  `json:"execution_result,omitempty"`
	Attempts        []ExecutionResult `json:"attempts,omitempty"`
	Reason          string            `json:"reason"`
	EventID         EventID           `json:"event_id,omitempty"`
}
