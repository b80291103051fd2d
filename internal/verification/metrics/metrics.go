package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the public verification lookup.
type Metrics struct {
	Lookups *prometheus.CounterVec
}

// New creates a new Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		Lookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_verification_lookups_total",
			Help: "Total number of public verification lookups by outcome",
		}, []string{"outcome"}),
	}
}

// IncrementLookups records a lookup outcome.
func (m *Metrics) IncrementLookups(outcome string) {
	if m != nil {
		m.Lookups.WithLabelValues(outcome).Inc()
	}
}
