package metrics

import (
	"time"

	"complyhq/sentinel/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics tracks asynchronous event delivery to the notification backend.
type DeliveryMetrics struct {
	deliveriesTotal  *prometheus.CounterVec
	attempts         prometheus.Histogram
	deliveryDuration *prometheus.HistogramVec
	queueDepth       prometheus.Gauge
}

// NewDeliveryMetrics creates and registers delivery metrics with the provided registry.
func NewDeliveryMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DeliveryMetrics {
	dm := &DeliveryMetrics{
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "notify",
				Name:      "deliveries_total",
				Help:      "Total number of event deliveries by outcome",
			},
			[]string{"event_type", "outcome"},
		),

		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "notify",
			Name:      "delivery_attempts",
			Help:      "Number of attempts needed per delivery",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}),

		deliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "notify",
				Name:      "delivery_duration_seconds",
				Help:      "Duration of a delivery including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "notify",
			Name:      "queue_depth",
			Help:      "Events waiting in the delivery queue",
		}),
	}

	registry.MustRegister(
		dm.deliveriesTotal,
		dm.attempts,
		dm.deliveryDuration,
		dm.queueDepth,
	)

	return dm
}

// RecordDelivery records the final outcome of delivering one event.
func (dm *DeliveryMetrics) RecordDelivery(eventType string, delivered bool, attempts int, duration time.Duration) {
	outcome := "delivered"
	if !delivered {
		outcome = "failed"
	}
	dm.deliveriesTotal.WithLabelValues(eventType, outcome).Inc()
	dm.attempts.Observe(float64(attempts))
	dm.deliveryDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetQueueDepth records the current queue length.
func (dm *DeliveryMetrics) SetQueueDepth(depth int) {
	dm.queueDepth.Set(float64(depth))
}
