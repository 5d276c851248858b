package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestMonitor_Healthy(t *testing.T) {
	m := NewMonitor(
		Check{Name: "events", Critical: true, Probe: ok},
		Check{Name: "redis", Probe: ok},
	)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if len(report.Components) != 2 {
		t.Errorf("expected 2 components, got %d", len(report.Components))
	}
}

func TestMonitor_Degraded(t *testing.T) {
	m := NewMonitor(
		Check{Name: "events", Critical: true, Probe: ok},
		Check{Name: "redis", Probe: down},
	)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if report.Components["redis"].Error != "connection refused" {
		t.Errorf("expected error to be reported, got %q", report.Components["redis"].Error)
	}
}

func TestMonitor_Critical(t *testing.T) {
	m := NewMonitor(
		Check{Name: "events", Critical: true, Probe: down},
		Check{Name: "redis", Probe: down},
	)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	calls := 0
	m := NewMonitor(Check{Name: "events", Probe: func(context.Context) error {
		calls++
		return nil
	}})

	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())
	if calls != 1 {
		t.Errorf("expected cached report, probe ran %d times", calls)
	}

	m.lastCheck = time.Now().Add(-2 * DefaultCacheTTL)
	m.CheckHealth(context.Background())
	if calls != 2 {
		t.Errorf("expected stale report to be refreshed, probe ran %d times", calls)
	}
}

func TestHandleHealth_StatusCodes(t *testing.T) {
	tests := []struct {
		name  string
		probe CheckFunc
		code  int
		want  SystemStatus
	}{
		{"healthy", ok, http.StatusOK, StatusHealthy},
		{"critical", down, http.StatusServiceUnavailable, StatusCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(Check{Name: "events", Critical: true, Probe: tt.probe})

			rec := httptest.NewRecorder()
			m.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != string(tt.want) {
				t.Errorf("expected %s, got %s", tt.want, body["status"])
			}
		})
	}
}

func TestHandleDetailed(t *testing.T) {
	m := NewMonitor(Check{Name: "redis", Probe: down})

	rec := httptest.NewRecorder()
	m.HandleDetailed(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Components["redis"].Status != StatusDegraded {
		t.Errorf("expected degraded redis, got %+v", report.Components["redis"])
	}
}
