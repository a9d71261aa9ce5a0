package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the consent module.
type Metrics struct {
	Granted *prometheus.CounterVec
	Revoked *prometheus.CounterVec
	Checks  *prometheus.CounterVec
}

// New creates a new Metrics instance with all consent module metrics registered.
func New() *Metrics {
	return &Metrics{
		Granted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_consent_granted_total",
			Help: "Consent grants by scope and whether a new record was created",
		}, []string{"scope", "created"}),

		Revoked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_consent_revoked_total",
			Help: "Consent revocations by scope and whether an active record existed",
		}, []string{"scope", "revoked"}),

		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_consent_checks_total",
			Help: "Consent checks by scope and outcome",
		}, []string{"scope", "outcome"}),
	}
}

// IncrementGranted records a grant attempt.
func (m *Metrics) IncrementGranted(scope string, created bool) {
	if m != nil {
		m.Granted.WithLabelValues(scope, boolLabel(created)).Inc()
	}
}

// IncrementRevoked records a revoke attempt.
func (m *Metrics) IncrementRevoked(scope string, revoked bool) {
	if m != nil {
		m.Revoked.WithLabelValues(scope, boolLabel(revoked)).Inc()
	}
}

// IncrementCheck records a consent check outcome.
func (m *Metrics) IncrementCheck(scope string, granted bool) {
	if m != nil {
		outcome := "missing"
		if granted {
			outcome = "granted"
		}
		m.Checks.WithLabelValues(scope, outcome).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
