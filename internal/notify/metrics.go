package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts notification outcomes by kind. A nil *Metrics is a no-op.
type Metrics struct {
	Enqueued      *prometheus.CounterVec
	Delivered     *prometheus.CounterVec
	Failed        *prometheus.CounterVec
	Dropped       *prometheus.CounterVec
	RelayFallback prometheus.Counter
	Latency       *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Enqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_notifications_enqueued_total",
			Help: "Notifications accepted into the dispatch buffer",
		}, []string{"kind"}),
		Delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_notifications_delivered_total",
			Help: "Notifications delivered by the relay",
		}, []string{"kind"}),
		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_notifications_failed_total",
			Help: "Notifications abandoned after all retries",
		}, []string{"kind"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_notifications_dropped_total",
			Help: "Notifications dropped because the buffer was full",
		}, []string{"kind"}),
		RelayFallback: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_notifications_relay_fallback_total",
			Help: "Notifications routed to the fallback relay while the primary circuit was open",
		}),
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboarding_notification_delivery_duration_seconds",
			Help:    "Latency of a single relay delivery attempt",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

func (m *Metrics) enqueued(k Kind) {
	if m != nil {
		m.Enqueued.WithLabelValues(string(k)).Inc()
	}
}

func (m *Metrics) delivered(k Kind) {
	if m != nil {
		m.Delivered.WithLabelValues(string(k)).Inc()
	}
}

func (m *Metrics) failed(k Kind) {
	if m != nil {
		m.Failed.WithLabelValues(string(k)).Inc()
	}
}

func (m *Metrics) dropped(k Kind) {
	if m != nil {
		m.Dropped.WithLabelValues(string(k)).Inc()
	}
}

func (m *Metrics) fallback() {
	if m != nil {
		m.RelayFallback.Inc()
	}
}

func (m *Metrics) observe(k Kind, start time.Time) {
	if m != nil {
		m.Latency.WithLabelValues(string(k)).Observe(time.Since(start).Seconds())
	}
}
