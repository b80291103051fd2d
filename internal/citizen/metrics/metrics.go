package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the citizen module.
type Metrics struct {
	Registered       prometheus.Counter
	Decided          *prometheus.CounterVec
	IdentifyDuration prometheus.Histogram
}

// New creates a new Metrics instance with all citizen module metrics registered.
func New() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_citizens_registered_total",
			Help: "Total number of citizen applications created",
		}),
		Decided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_citizen_decisions_total",
			Help: "Total number of citizen approval decisions by outcome",
		}, []string{"outcome"}),
		IdentifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "civreg_citizen_identify_duration_seconds",
			Help:    "Duration of Identify lookups (public critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementRegistered records a successful citizen application.
func (m *Metrics) IncrementRegistered() {
	if m != nil {
		m.Registered.Inc()
	}
}

// IncrementDecided records an approval decision by outcome.
func (m *Metrics) IncrementDecided(outcome string) {
	if m != nil {
		m.Decided.WithLabelValues(outcome).Inc()
	}
}

// ObserveIdentify records the duration of an Identify operation.
func (m *Metrics) ObserveIdentify(start time.Time) {
	if m != nil {
		m.IdentifyDuration.Observe(time.Since(start).Seconds())
	}
}
