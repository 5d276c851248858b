// Package hooks contains the two entry pipelines: the tool output hook, which
// advances work items from tool output, and the reliability hook, which
// watches upstream task executions and recovers failed ones. They share only
// the audit store.
package hooks

import (
	"time"

	"go.opentelemetry.io/otel"

	"github.com/vietddude/relihub/internal/core/domain"
)

var tracer = otel.Tracer("github.com/vietddude/relihub/internal/hooks")

// resolvedAt returns the resolution time for terminal success statuses.
func resolvedAt(status domain.EventStatus) *time.Time {
	if status != domain.EventStatusSuccess {
		return nil
	}
	now := time.Now()
	return &now
}
