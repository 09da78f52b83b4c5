package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fyrsmithlabs/knowledged/internal/errs"
)

// Metrics tracks tool invocations.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	active      *prometheus.GaugeVec
}

// NewMetrics registers gateway metrics on reg. A nil registerer yields
// no-op metrics for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "knowledged",
			Subsystem: "gateway",
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by name and outcome code.",
		}, []string{"tool", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "knowledged",
			Subsystem: "gateway",
			Name:      "tool_duration_seconds",
			Help:      "Tool invocation latency by name.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"tool"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "knowledged",
			Subsystem: "gateway",
			Name:      "tool_active_requests",
			Help:      "In-flight tool invocations by name.",
		}, []string{"tool"}),
	}
	if reg != nil {
		reg.MustRegister(m.invocations, m.duration, m.active)
	}
	return m
}

func (m *Metrics) incActive(tool string) { m.active.WithLabelValues(tool).Inc() }
func (m *Metrics) decActive(tool string) { m.active.WithLabelValues(tool).Dec() }

func (m *Metrics) record(tool string, elapsed time.Duration, err error) {
	code := "ok"
	if err != nil {
		code = string(errs.CodeOf(err))
	}
	m.invocations.WithLabelValues(tool, code).Inc()
	m.duration.WithLabelValues(tool).Observe(elapsed.Seconds())
}
