package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the relay's core pipeline metrics
type Metrics struct {
	// EventsReceived counts deliveries pulled from the message channel
	EventsReceived prometheus.Counter

	// EventsProcessed counts events by terminal outcome (acknowledged, failed)
	EventsProcessed *prometheus.CounterVec

	// EventsInflight tracks events currently in the pipeline
	EventsInflight prometheus.Gauge

	// StageDuration measures per-stage processing time
	StageDuration *prometheus.HistogramVec

	// StageFailures counts failures by stage and error kind
	StageFailures *prometheus.CounterVec

	// ChannelConnected reports message channel connectivity (0/1)
	ChannelConnected prometheus.Gauge

	// ChannelRedeliveries counts events seen more than once
	ChannelRedeliveries prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all relay core metrics
func NewMetrics() *Metrics {
	return &Metrics{
		EventsReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "inferrelay",
				Subsystem: "events",
				Name:      "received_total",
				Help:      "Total number of events received from the message channel",
			},
		),

		EventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inferrelay",
				Subsystem: "events",
				Name:      "processed_total",
				Help:      "Total number of events reaching a terminal state",
			},
			[]string{"outcome"},
		),

		EventsInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "inferrelay",
				Subsystem: "events",
				Name:      "inflight",
				Help:      "Number of events currently being processed",
			},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "inferrelay",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Per-stage processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),

		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inferrelay",
				Subsystem: "pipeline",
				Name:      "stage_failures_total",
				Help:      "Total failures by pipeline stage and error kind",
			},
			[]string{"stage", "kind"},
		),

		ChannelConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "inferrelay",
				Subsystem: "channel",
				Name:      "connected",
				Help:      "Message channel connectivity (0=disconnected, 1=connected)",
			},
		),

		ChannelRedeliveries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "inferrelay",
				Subsystem: "channel",
				Name:      "redeliveries_total",
				Help:      "Total events delivered more than once",
			},
		),
	}
}
