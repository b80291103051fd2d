package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the admin module.
type Metrics struct {
	Logins        *prometheus.CounterVec
	EmailBindings prometheus.Counter
}

// New creates a new Metrics instance with all admin module metrics registered.
func New() *Metrics {
	return &Metrics{
		Logins: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_admin_logins_total",
			Help: "Total number of administrator login attempts by result",
		}, []string{"result"}),
		EmailBindings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_admin_email_bindings_total",
			Help: "Total number of confirmed second-factor email bindings",
		}),
	}
}

// IncrementLogins records a login attempt result.
func (m *Metrics) IncrementLogins(result string) {
	if m != nil {
		m.Logins.WithLabelValues(result).Inc()
	}
}

// IncrementEmailBindings records a confirmed binding.
func (m *Metrics) IncrementEmailBindings() {
	if m != nil {
		m.EmailBindings.Inc()
	}
}
