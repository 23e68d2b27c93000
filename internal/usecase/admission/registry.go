package admission

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults for a process-wide registry.
const (
	DefaultLimit         = 2
	DefaultSweepInterval = 5 * time.Minute
)

// Gauge receives the total number of admitted runs after every change.
type Gauge interface {
	Set(v float64)
}

// Registry limits concurrent runs per domain. The zero value is not usable; call New.
type Registry struct {
	mu     sync.Mutex
	active map[int64]int
	total  int
	limit  int
	gauge  Gauge
	logger *zap.Logger
}

// New creates a registry admitting at most limit runs per domain.
// A non-positive limit falls back to DefaultLimit.
func New(limit int, logger *zap.Logger) *Registry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		active: make(map[int64]int),
		limit:  limit,
		logger: logger,
	}
}

// WithGauge reports the process-wide active run count to g.
func (r *Registry) WithGauge(g Gauge) *Registry {
	r.gauge = g
	return r
}

// TryAdmit takes a slot for domainID if one is free.
func (r *Registry) TryAdmit(domainID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active[domainID] >= r.limit {
		return false
	}
	r.active[domainID]++
	r.total++
	r.report()
	return true
}

// Release returns a slot. Extra releases are ignored.
func (r *Registry) Release(domainID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active[domainID] <= 0 {
		r.logger.Warn("Release without matching admit", zap.Int64("domain_id", domainID))
		return
	}
	r.active[domainID]--
	r.total--
	r.report()
}

// Active returns the number of running admissions for domainID.
func (r *Registry) Active(domainID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[domainID]
}

// Limit returns the per-domain cap.
func (r *Registry) Limit() int { return r.limit }

// Sweep drops idle domains from the map and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, n := range r.active {
		if n == 0 {
			delete(r.active, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked domains, idle ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Start sweeps every interval until ctx is done.
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("Swept idle admission entries", zap.Int("removed", n))
			}
		}
	}
}

func (r *Registry) report() {
	if r.gauge != nil {
		r.gauge.Set(float64(r.total))
	}
}
