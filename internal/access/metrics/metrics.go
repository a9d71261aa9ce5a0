package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the access module. Counters live in the
// Prometheus registry, so concurrent evaluations increment them atomically
// instead of racing over shared process memory.
type Metrics struct {
	// Decisions by outcome ("allowed"/"denied") and permission
	Decisions *prometheus.CounterVec

	// Denials by reason, for alerting on unexpected spikes
	Denials *prometheus.CounterVec

	// Full evaluation latency including principal loading
	EvaluateLatency prometheus.Histogram

	// Unknown role strings encountered during evaluation
	UnknownRoles prometheus.Counter
}

// New creates a new Metrics instance with all access module metrics registered.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_access_decisions_total",
			Help: "Total policy decisions by outcome and permission",
		}, []string{"outcome", "permission"}),

		Denials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_access_denials_total",
			Help: "Total policy denials by reason",
		}, []string{"reason"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_access_evaluate_duration_seconds",
			Help:    "Duration of policy evaluation",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		UnknownRoles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_access_unknown_roles_total",
			Help: "Role strings not present in the permission catalog",
		}),
	}
}

// IncrementDecision records a decision outcome.
func (m *Metrics) IncrementDecision(outcome, permission string) {
	if m != nil {
		m.Decisions.WithLabelValues(outcome, permission).Inc()
	}
}

// IncrementDenial records a denial reason.
func (m *Metrics) IncrementDenial(reason string) {
	if m != nil {
		m.Denials.WithLabelValues(reason).Inc()
	}
}

// ObserveEvaluateLatency records the evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// IncrementUnknownRole records an unrecognized role string.
func (m *Metrics) IncrementUnknownRole() {
	if m != nil {
		m.UnknownRoles.Inc()
	}
}
