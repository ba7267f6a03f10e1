package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventMetrics records SSE and webhook fanout activity.
type EventMetrics struct {
	sseSubscribers prometheus.Gauge
	ssePublished   *prometheus.CounterVec
	callbacksTotal *prometheus.CounterVec
}

// NewEventMetrics creates Prometheus-backed event metrics, or nil if
// metrics are not enabled.
func NewEventMetrics() *EventMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &EventMetrics{
		sseSubscribers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "imgforge_sse_subscribers",
				Help: "Current number of connected SSE subscribers",
			},
		),
		ssePublished: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "imgforge_sse_events_published_total",
				Help: "Total number of SSE events published by type",
			},
			[]string{"type"},
		),
		callbacksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "imgforge_callbacks_total",
				Help: "Total number of webhook callback deliveries by status",
			},
			[]string{"status"},
		),
	}
}

// SetSubscribers updates the subscriber gauge.
func (m *EventMetrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.sseSubscribers.Set(float64(n))
}

// RecordPublished counts one published SSE event.
func (m *EventMetrics) RecordPublished(eventType string) {
	if m == nil {
		return
	}
	m.ssePublished.WithLabelValues(eventType).Inc()
}

// RecordCallback counts one webhook delivery outcome.
func (m *EventMetrics) RecordCallback(status string) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(status).Inc()
}
