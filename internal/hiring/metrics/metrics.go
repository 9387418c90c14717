package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the hiring module.
// Tracks application intake, hiring decisions and approval latency.
type Metrics struct {
	ApplicationsSubmitted prometheus.Counter
	Decisions             *prometheus.CounterVec
	ImportedRows          *prometheus.CounterVec
	ApproveDuration       prometheus.Histogram
}

// New registers the hiring metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ApplicationsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "hiring_applications_submitted_total",
			Help: "Total number of job applications received",
		}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hiring_decisions_total",
			Help: "Hiring decisions recorded, by decision",
		}, []string{"decision"}),
		ImportedRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hiring_import_rows_total",
			Help: "Spreadsheet rows processed by bulk import, by outcome",
		}, []string{"outcome"}),
		ApproveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hiring_approve_duration_seconds",
			Help:    "Duration of Approve operations including session issuance",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementSubmitted records a new application.
func (m *Metrics) IncrementSubmitted() {
	if m == nil {
		return
	}
	m.ApplicationsSubmitted.Inc()
}

// IncrementDecision records a reviewed, rejected or approved application.
func (m *Metrics) IncrementDecision(decision string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(decision).Inc()
}

// AddImported records the outcome of n imported rows.
func (m *Metrics) AddImported(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ImportedRows.WithLabelValues(outcome).Add(float64(n))
}

// ObserveApprove records the duration of an Approve operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveApprove(start time.Time) {
	if m == nil {
		return
	}
	m.ApproveDuration.Observe(time.Since(start).Seconds())
}
