package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the OTP module.
type Metrics struct {
	Issued        prometheus.Counter
	Verifications *prometheus.CounterVec
}

// New creates a new Metrics instance with all OTP module metrics registered.
func New() *Metrics {
	return &Metrics{
		Issued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_otp_issued_total",
			Help: "Total number of one-time passcodes issued",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_otp_verifications_total",
			Help: "Total number of verification attempts by result",
		}, []string{"result"}),
	}
}

// IncrementIssued records an issued passcode.
func (m *Metrics) IncrementIssued() {
	if m != nil {
		m.Issued.Inc()
	}
}

// IncrementVerifications records a verification attempt result.
func (m *Metrics) IncrementVerifications(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}
