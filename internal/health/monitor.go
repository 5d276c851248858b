package health

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultCacheTTL bounds how often dependencies are actually probed.
	DefaultCacheTTL = 10 * time.Second
	checkTimeout    = 2 * time.Second
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Check is a named dependency probe. A failing critical check marks the whole
// system critical, any other failure only degrades it.
type Check struct {
	Name     string
	Critical bool
	Probe    CheckFunc
}

// Monitor aggregates health status from various system components.
type Monitor struct {
	checks     []Check
	cacheTTL   time.Duration
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(checks ...Check) *Monitor {
	return &Monitor{
		checks:   checks,
		cacheTTL: DefaultCacheTTL,
	}
}

// Add registers another check.
func (m *Monitor) Add(c Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, c)
	m.lastCheck = time.Time{}
}

// CheckHealth runs every check, reusing a recent report when one exists.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastCheck.IsZero() && time.Since(m.lastCheck) < m.cacheTTL {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.checks)),
	}

	for _, c := range m.checks {
		ch := probe(ctx, c)
		report.Components[c.Name] = ch
		report.SystemStatus = worst(report.SystemStatus, ch.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func probe(ctx context.Context, c Check) ComponentHealth {
	ch := ComponentHealth{Name: c.Name, Status: StatusHealthy, Critical: c.Critical}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := c.Probe(ctx)
	ch.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		ch.Error = err.Error()
		if c.Critical {
			ch.Status = StatusCritical
		} else {
			ch.Status = StatusDegraded
		}
	}
	return ch
}

func worst(a, b SystemStatus) SystemStatus {
	rank := func(s SystemStatus) int {
		switch s {
		case StatusCritical:
			return 2
		case StatusDegraded:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
