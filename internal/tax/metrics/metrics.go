package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the tax module.
type Metrics struct {
	Payments         prometheus.Counter
	ComplianceChecks *prometheus.CounterVec
}

// New creates a new Metrics instance with all tax module metrics registered.
func New() *Metrics {
	return &Metrics{
		Payments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_tax_payments_total",
			Help: "Total number of recorded tax payments",
		}),
		ComplianceChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_tax_compliance_checks_total",
			Help: "Total number of compliance checks by result",
		}, []string{"result"}),
	}
}

// IncrementPayments records a successful payment.
func (m *Metrics) IncrementPayments() {
	if m != nil {
		m.Payments.Inc()
	}
}

// IncrementComplianceChecks records a compliance lookup result.
func (m *Metrics) IncrementComplianceChecks(result string) {
	if m != nil {
		m.ComplianceChecks.WithLabelValues(result).Inc()
	}
}
