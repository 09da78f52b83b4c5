package batch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks orchestrator activity. The in-flight gauge is the
// observable proof that the concurrency bound holds under load.
type Metrics struct {
	inFlight prometheus.Gauge
	items    *prometheus.CounterVec
	latency  prometheus.Histogram
}

// NewMetrics creates and registers orchestrator metrics. A nil registerer
// yields a no-op Metrics for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "knowledged_batch_in_flight_tasks",
			Help: "Number of batch sub-tasks currently executing.",
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledged_batch_items_total",
			Help: "Batch sub-task completions by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "knowledged_batch_item_duration_seconds",
			Help:    "Duration of individual batch sub-tasks.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.inFlight, m.items, m.latency)
	}
	return m
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

func (m *Metrics) recordItem(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.items.WithLabelValues(outcome).Inc()
	m.latency.Observe(elapsed.Seconds())
}
