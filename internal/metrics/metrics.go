package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the turn-level instruments. A nil *Metrics records nothing.
type Metrics struct {
	Turns           *prometheus.CounterVec
	BackendFailures prometheus.Counter
	BackendLatency  prometheus.Histogram
	MemoriesAdded   prometheus.Counter
	SummariesAdded  prometheus.Counter
	ActiveSessions  prometheus.Gauge
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Turns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aria_turns_total",
				Help: "Total number of handled turns by reply source",
			},
			[]string{"source"},
		),
		BackendFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "aria_backend_failures_total",
				Help: "Total number of generation backend failures",
			},
		),
		BackendLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aria_backend_latency_seconds",
				Help:    "Generation backend latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		MemoriesAdded: f.NewCounter(
			prometheus.CounterOpts{
				Name: "aria_memories_added_total",
				Help: "Total number of memories stored",
			},
		),
		SummariesAdded: f.NewCounter(
			prometheus.CounterOpts{
				Name: "aria_summaries_added_total",
				Help: "Total number of conversation summaries stored",
			},
		),
		ActiveSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "aria_active_sessions",
				Help: "Number of in-process conversation sessions",
			},
		),
	}
}

func (m *Metrics) Turn(source string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(source).Inc()
}

func (m *Metrics) BackendCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.BackendLatency.Observe(d.Seconds())
	if err != nil {
		m.BackendFailures.Inc()
	}
}

func (m *Metrics) MemoryAdded() {
	if m == nil {
		return
	}
	m.MemoriesAdded.Inc()
}

func (m *Metrics) SummaryAdded() {
	if m == nil {
		return
	}
	m.SummariesAdded.Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
