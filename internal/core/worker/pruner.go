package worker

import (
	"context"
	"log/slog"
	"time"
)

// Prunable is an in-memory store whose entries expire.
type Prunable interface {
	// Retention is how long entries are kept
	Retention() time.Duration

	// PruneOlderThan removes entries created before cutoff and returns the count
	PruneOlderThan(cutoff time.Time) int
}

// Pruner evicts expired entries on a fixed interval.
type Pruner struct {
	name     string
	target   Prunable
	interval time.Duration
}

// NewPruner creates a new Pruner worker. A non-positive interval is derived
// from the target's retention.
func NewPruner(name string, target Prunable, interval time.Duration) *Pruner {
	if interval <= 0 {
		// 10% of retention, between one second and one hour
		interval = min(target.Retention()/10, 1*time.Hour)
		interval = max(interval, 1*time.Second)
	}
	return &Pruner{
		name:     name,
		target:   target,
		interval: interval,
	}
}

// Start runs the pruner loop until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p.target.Retention() <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune()
		}
	}
}

func (p *Pruner) prune() {
	cutoff := time.Now().Add(-p.target.Retention())
	if n := p.target.PruneOlderThan(cutoff); n > 0 {
		slog.Debug("Pruned expired entries", "pruner", p.name, "removed", n)
	}
}
