package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the certificate module.
type Metrics struct {
	Applications  prometheus.Counter
	Decisions     *prometheus.CounterVec
	Issued        prometheus.Counter
	NumberRetries prometheus.Counter
}

// New creates a new Metrics instance with all certificate module metrics registered.
func New() *Metrics {
	return &Metrics{
		Applications: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_certificate_applications_total",
			Help: "Total number of certificate applications created",
		}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_certificate_decisions_total",
			Help: "Total number of certificate decisions by outcome",
		}, []string{"outcome"}),
		Issued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_certificates_issued_total",
			Help: "Total number of certificates issued",
		}),
		NumberRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_certificate_number_retries_total",
			Help: "Total number of certificate-number collisions that forced a retry",
		}),
	}
}

// IncrementApplications records a new application.
func (m *Metrics) IncrementApplications() {
	if m != nil {
		m.Applications.Inc()
	}
}

// IncrementDecisions records an approve/reject decision.
func (m *Metrics) IncrementDecisions(outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(outcome).Inc()
	}
}

// IncrementIssued records a successful issuance.
func (m *Metrics) IncrementIssued() {
	if m != nil {
		m.Issued.Inc()
	}
}

// IncrementNumberRetries records a number collision.
func (m *Metrics) IncrementNumberRetries() {
	if m != nil {
		m.NumberRetries.Inc()
	}
}
