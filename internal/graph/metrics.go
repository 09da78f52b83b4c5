package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks graph adapter operations.
type Metrics struct {
	queries *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics registers graph metrics on reg. A nil registerer yields
// no-op metrics for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "knowledged",
			Subsystem: "graph",
			Name:      "queries_total",
			Help:      "Graph queries by operation and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "knowledged",
			Subsystem: "graph",
			Name:      "query_duration_seconds",
			Help:      "Graph query latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.queries, m.latency)
	}
	return m
}

func (m *Metrics) recordQuery(operation string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.queries.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}
