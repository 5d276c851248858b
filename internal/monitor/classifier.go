package monitor

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/vietddude/relihub/internal/core/domain"
)

// DefaultTimeoutThreshold is the longest execution, in seconds, that is not a timeout.
const DefaultTimeoutThreshold = 30.0

// keywordRule maps response keywords to a failure type.
type keywordRule struct {
	failure  domain.FailureType
	keywords []string
}

// responseRules are checked in order after the duration and status code checks.
var responseRules = []keywordRule{
	{domain.FailureAuth, []string{"unauthorized", "invalid token", "permission", "auth failed"}},
	{domain.FailureGatewayTimeout, []string{"gateway", "timeout", "unavailable", "service unavailable"}},
	{domain.FailureWebhook, []string{"webhook", "external", "connection refused", "connection failed"}},
	{domain.FailureUnknown, []string{"error:", "error ", "failed", "failed:"}},
}

// Outcome is what the upstream workflow service reports for one execution.
type Outcome struct {
	StatusCode      *int
	Response        string
	DurationSeconds float64
}

// Classifier maps an execution outcome to a failure type and a human reason.
type Classifier func(o Outcome) (domain.FailureType, string)

// NewClassifier returns the default classifier. Durations strictly greater
// than threshold are timeouts; a non-positive threshold uses the default.
func NewClassifier(threshold float64) Classifier {
	if threshold <= 0 {
		threshold = DefaultTimeoutThreshold
	}
	return func(o Outcome) (domain.FailureType, string) {
		if o.DurationSeconds > threshold {
			return domain.FailureExecutionTimeout,
				fmt.Sprintf("execution took %.2fs, over the %.1fs limit", o.DurationSeconds, threshold)
		}

		if o.StatusCode != nil {
			switch *o.StatusCode {
			case http.StatusForbidden:
				return domain.FailureAuth, "upstream returned 403 Forbidden"
			case http.StatusGatewayTimeout:
				return domain.FailureGatewayTimeout, "upstream returned 504 Gateway Timeout"
			}
		}

		if o.Response == "" {
			return domain.FailureNone, "execution completed"
		}
		lower := strings.ToLower(o.Response)
		for _, rule := range responseRules {
			for _, kw := range rule.keywords {
				if strings.Contains(lower, kw) {
					return rule.failure, fmt.Sprintf("response matched %q", kw)
				}
			}
		}
		return domain.FailureNone, "execution completed"
	}
}
