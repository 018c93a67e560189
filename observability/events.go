package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	emitted   *prometheus.CounterVec
	dropped   prometheus.Counter
	listeners prometheus.Gauge
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured module events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of emitted events segmented by type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Events dropped because a subscriber was too slow.",
			}),
			listeners: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nhb",
				Subsystem: "events",
				Name:      "subscribers",
				Help:      "Number of connected event stream subscribers.",
			}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.dropped, eventRegistry.listeners)
	})
	return eventRegistry
}

// RecordEmitted increments the emitted counter for the supplied event type.
func (m *eventMetrics) RecordEmitted(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

func (m *eventMetrics) RecordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *eventMetrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.listeners.Set(float64(n))
}
