package embeddings

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks embedding provider calls, retries and failures.
type Metrics struct {
	calls    *prometheus.CounterVec
	retries  prometheus.Counter
	failures *prometheus.CounterVec
	latency  prometheus.Histogram
	inFlight prometheus.Gauge
}

// NewMetrics creates and registers provider metrics. A nil registerer
// yields a no-op Metrics for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledged_embedding_calls_total",
			Help: "Embedding provider HTTP calls by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knowledged_embedding_retries_total",
			Help: "Embedding calls retried after a transient failure.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledged_embedding_failures_total",
			Help: "Embedding calls surfaced as errors, by failure kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "knowledged_embedding_call_duration_seconds",
			Help:    "Duration of individual embedding provider calls.",
			Buckets: prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "knowledged_embedding_in_flight_calls",
			Help: "Embedding provider calls currently executing.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.retries, m.failures, m.latency, m.inFlight)
	}
	return m
}

func (m *Metrics) recordCall(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(outcome).Inc()
	m.latency.Observe(elapsed.Seconds())
}

func (m *Metrics) recordRetry() {
	if m != nil {
		m.retries.Inc()
	}
}

func (m *Metrics) recordFailure(kind string) {
	if m != nil {
		m.failures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) incInFlight() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) decInFlight() {
	if m != nil {
		m.inFlight.Dec()
	}
}
