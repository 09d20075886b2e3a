package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the resource tree's platform-level metrics.
type Metrics struct {
	// Tree shape
	EntriesByKind          *prometheus.GaugeVec
	ChangeEventsDispatched *prometheus.CounterVec
	TombstonesPending      prometheus.Gauge

	// Push pipeline
	PushesTotal        *prometheus.CounterVec
	PushRejectedTotal   *prometheus.CounterVec
	PoolExhaustedTotal  *prometheus.CounterVec
	PushDuration        *prometheus.HistogramVec
	ErrorsTotal         *prometheus.CounterVec

	// NATS change notifier
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all platform metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		EntriesByKind: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "datahub",
				Subsystem: "tree",
				Name:      "entries",
				Help:      "Number of entries in the resource tree, by kind",
			},
			[]string{"kind"},
		),

		ChangeEventsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datahub",
				Subsystem: "dispatch",
				Name:      "events_total",
				Help:      "Total number of change events dispatched to listeners",
			},
			[]string{"op"},
		),

		TombstonesPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "datahub",
				Subsystem: "tree",
				Name:      "tombstones_pending",
				Help:      "Number of deleted namespace entries retained pending snapshot flush",
			},
		),

		PushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datahub",
				Subsystem: "resource",
				Name:      "pushes_total",
				Help:      "Total number of samples pushed to a resource",
			},
			[]string{"kind", "status"},
		),

		PushRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datahub",
				Subsystem: "resource",
				Name:      "push_rejected_total",
				Help:      "Total number of pushes rejected by filtering (min period, limits, change-by)",
			},
			[]string{"reason"},
		),

		PoolExhaustedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datahub",
				Subsystem: "pool",
				Name:      "exhausted_total",
				Help:      "Total number of pool allocation failures by pool and size class",
			},
			[]string{"pool", "class"},
		),

		PushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "datahub",
				Subsystem: "resource",
				Name:      "push_duration_seconds",
				Help:      "Resource push latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datahub",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors, by administrative kind",
			},
			[]string{"kind"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "datahub",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "datahub",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "datahub",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "datahub",
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

// SetEntriesByKind updates the entry-count gauge for one entry kind.
func (m *Metrics) SetEntriesByKind(kind string, count int) {
	m.EntriesByKind.WithLabelValues(kind).Set(float64(count))
}

// RecordChangeEvent increments the dispatched-event counter for an operation (ADDED/REMOVED).
func (m *Metrics) RecordChangeEvent(op string) {
	m.ChangeEventsDispatched.WithLabelValues(op).Inc()
}

// SetTombstonesPending updates the pending-tombstone gauge.
func (m *Metrics) SetTombstonesPending(count int) {
	m.TombstonesPending.Set(float64(count))
}

// RecordPush increments the push counter for a resource kind and outcome.
func (m *Metrics) RecordPush(kind, status string) {
	m.PushesTotal.WithLabelValues(kind, status).Inc()
}

// RecordPushRejected increments the push-rejection counter for a reason.
func (m *Metrics) RecordPushRejected(reason string) {
	m.PushRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordPoolExhausted increments the pool-exhaustion counter.
func (m *Metrics) RecordPoolExhausted(pool, class string) {
	m.PoolExhaustedTotal.WithLabelValues(pool, class).Inc()
}

// RecordPushDuration records how long a push to a resource kind took.
func (m *Metrics) RecordPushDuration(kind string, d time.Duration) {
	m.PushDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordError increments the error counter for an administrative kind.
func (m *Metrics) RecordError(kind string) {
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordNATSStatus updates NATS connection status.
func (m *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}

// RecordNATSRTT updates NATS round-trip time.
func (m *Metrics) RecordNATSRTT(rtt time.Duration) {
	m.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments the reconnection counter.
func (m *Metrics) RecordNATSReconnect() {
	m.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status.
func (m *Metrics) RecordCircuitBreakerState(state int) {
	m.NATSCircuitBreaker.Set(float64(state))
}
