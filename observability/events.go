package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	deliveries *prometheus.CounterVec
	dropped    *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking outbound event delivery.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "playmint",
				Subsystem: "events",
				Name:      "webhook_deliveries_total",
				Help:      "Webhook deliveries segmented by event type and outcome.",
			}, []string{"type", "outcome"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "playmint",
				Subsystem: "events",
				Name:      "webhook_dropped_total",
				Help:      "Events dropped before delivery because the queue was full.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.deliveries, eventRegistry.dropped)
	})
	return eventRegistry
}

// RecordDelivery counts one finished delivery. Outcome is "delivered" or
// "abandoned".
func (m *eventMetrics) RecordDelivery(eventType, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeType(eventType), outcome).Inc()
}

// RecordDrop counts an event discarded by a full queue.
func (m *eventMetrics) RecordDrop(eventType string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeType(eventType)).Inc()
}

func normalizeType(eventType string) string {
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
