package knowledge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Component status values reported by health checks.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Checker probes one dependency.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// ComponentStatus is one dependency's probe result.
type ComponentStatus struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthStatus aggregates all component probes. Status is healthy when
// every component passes, degraded when some fail, unhealthy when all
// fail.
type HealthStatus struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
}

// Health polls dependency checkers in the background and serves the
// latest aggregate to readiness probes and the health_check tool.
type Health struct {
	checkers []Checker
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu   sync.RWMutex
	last HealthStatus
}

// NewHealth creates the aggregator. The first probe runs when Run
// starts or Check is called; until then the status is unhealthy.
func NewHealth(interval, timeout time.Duration, logger *zap.Logger, checkers ...Checker) *Health {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Health{
		checkers: checkers,
		interval: interval,
		timeout:  timeout,
		logger:   logger.Named("health"),
		last:     HealthStatus{Status: StatusUnhealthy, Components: map[string]ComponentStatus{}},
	}
}

// Run polls until ctx is canceled. An immediate probe runs first so
// readiness does not wait a full interval after startup.
func (h *Health) Run(ctx context.Context) {
	h.Check(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Check probes every component concurrently and returns the fresh
// aggregate. The result also becomes the cached snapshot.
func (h *Health) Check(ctx context.Context) HealthStatus {
	components := make([]ComponentStatus, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			start := time.Now()
			err := c.Check(probeCtx)
			status := ComponentStatus{
				Status:    StatusHealthy,
				LatencyMS: time.Since(start).Milliseconds(),
				CheckedAt: time.Now().UTC(),
			}
			if err != nil {
				status.Status = StatusUnhealthy
				status.Error = err.Error()
				h.logger.Warn("dependency check failed",
					zap.String("component", c.Name), zap.Error(err))
			}
			components[i] = status
		}(i, c)
	}
	wg.Wait()

	agg := HealthStatus{Components: make(map[string]ComponentStatus, len(h.checkers))}
	healthy := 0
	for i, c := range h.checkers {
		agg.Components[c.Name] = components[i]
		if components[i].Status == StatusHealthy {
			healthy++
		}
	}
	switch {
	case len(h.checkers) == 0 || healthy == len(h.checkers):
		agg.Status = StatusHealthy
	case healthy > 0:
		agg.Status = StatusDegraded
	default:
		agg.Status = StatusUnhealthy
	}

	h.mu.Lock()
	h.last = agg
	h.mu.Unlock()
	return agg
}

// Snapshot returns the latest aggregate without probing.
func (h *Health) Snapshot() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

// Ready reports whether the service should accept traffic. A degraded
// service still serves the operations whose dependencies are up.
func (h *Health) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last.Status != StatusUnhealthy
}
