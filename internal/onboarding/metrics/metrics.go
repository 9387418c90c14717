package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the onboarding workflow.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SessionsIssued    *prometheus.CounterVec
	Transitions       *prometheus.CounterVec
	StepFailures      *prometheus.CounterVec
	TokenRejections   *prometheus.CounterVec
	Materializations  *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// New registers the onboarding metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_sessions_issued_total",
			Help: "Onboarding sessions issued, by token kind",
		}, []string{"kind"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_transitions_total",
			Help: "Applied status transitions, by action and resulting status",
		}, []string{"action", "to"}),
		StepFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_step_validation_failures_total",
			Help: "Rejected step submissions, by step",
		}, []string{"step"}),
		TokenRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_token_rejections_total",
			Help: "Rejected applicant tokens, by reason",
		}, []string{"reason"}),
		Materializations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_materializations_total",
			Help: "Employee materialization attempts, by outcome",
		}, []string{"outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboarding_operation_duration_seconds",
			Help:    "Duration of onboarding service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncSessionIssued(kind string) {
	if m == nil {
		return
	}
	m.SessionsIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncTransition(action, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(action, to).Inc()
}

func (m *Metrics) IncStepFailure(step string) {
	if m == nil {
		return
	}
	m.StepFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) IncTokenRejected(reason string) {
	if m == nil {
		return
	}
	m.TokenRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncMaterialization(outcome string) {
	if m == nil {
		return
	}
	m.Materializations.WithLabelValues(outcome).Inc()
}

// ObserveOperation records the duration of an operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
