// Package metrics exposes Prometheus instrumentation for the content
// dispatcher, the snapshot store and the WebSocket hub.
//
// Every method is safe to call on a nil *Metrics, so components can be
// constructed without instrumentation in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Payload outcomes recorded by the dispatcher.
const (
	OutcomeDelivered = "delivered"
	OutcomeDropped   = "dropped"
)

// Metrics holds all loft collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	payloads           *prometheus.CounterVec
	broadcastFailures  prometheus.Counter
	deliveriesDropped  prometheus.Counter
	subscriberPanics   prometheus.Counter
	subscribers        prometheus.Gauge
	checkpointSaves    *prometheus.CounterVec
	checkpointNumber   prometheus.Gauge
	checkpointSaveTime prometheus.Histogram
	peers              prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		payloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loft",
			Subsystem: "content",
			Name:      "payloads_total",
			Help:      "Inbound content payloads by outcome (delivered or dropped).",
		}, []string{"outcome"}),
		broadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loft",
			Subsystem: "content",
			Name:      "broadcast_failures_total",
			Help:      "Broadcasts rejected by the communicator.",
		}),
		deliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loft",
			Subsystem: "content",
			Name:      "deliveries_dropped_total",
			Help:      "Messages not handed to a subscriber because its queue stayed full.",
		}),
		subscriberPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loft",
			Subsystem: "content",
			Name:      "subscriber_panics_total",
			Help:      "Subscriber callbacks that panicked.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loft",
			Subsystem: "content",
			Name:      "subscribers",
			Help:      "Currently registered content subscribers.",
		}),
		checkpointSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loft",
			Subsystem: "snapshot",
			Name:      "saves_total",
			Help:      "Checkpoint save attempts by result (ok or error).",
		}, []string{"result"}),
		checkpointNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loft",
			Subsystem: "snapshot",
			Name:      "checkpoint_number",
			Help:      "Number of the latest committed checkpoint.",
		}),
		checkpointSaveTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loft",
			Subsystem: "snapshot",
			Name:      "save_duration_seconds",
			Help:      "Time taken to durably persist a checkpoint.",
			Buckets:   prometheus.DefBuckets,
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loft",
			Subsystem: "hub",
			Name:      "peers",
			Help:      "Connected WebSocket peers.",
		}),
	}

	reg.MustRegister(
		m.payloads,
		m.broadcastFailures,
		m.deliveriesDropped,
		m.subscriberPanics,
		m.subscribers,
		m.checkpointSaves,
		m.checkpointNumber,
		m.checkpointSaveTime,
		m.peers,
	)

	return m
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry in Prometheus format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PayloadDelivered() {
	if m != nil {
		m.payloads.WithLabelValues(OutcomeDelivered).Inc()
	}
}

func (m *Metrics) PayloadDropped() {
	if m != nil {
		m.payloads.WithLabelValues(OutcomeDropped).Inc()
	}
}

func (m *Metrics) BroadcastFailed() {
	if m != nil {
		m.broadcastFailures.Inc()
	}
}

func (m *Metrics) DeliveryDropped() {
	if m != nil {
		m.deliveriesDropped.Inc()
	}
}

func (m *Metrics) SubscriberPanicked() {
	if m != nil {
		m.subscriberPanics.Inc()
	}
}

func (m *Metrics) SetSubscribers(n int) {
	if m != nil {
		m.subscribers.Set(float64(n))
	}
}

// CheckpointSaved records a committed checkpoint and how long the write took.
func (m *Metrics) CheckpointSaved(number int, seconds float64) {
	if m != nil {
		m.checkpointSaves.WithLabelValues("ok").Inc()
		m.checkpointNumber.Set(float64(number))
		m.checkpointSaveTime.Observe(seconds)
	}
}

func (m *Metrics) CheckpointSaveFailed() {
	if m != nil {
		m.checkpointSaves.WithLabelValues("error").Inc()
	}
}

// SetCheckpointNumber records the recovered checkpoint count at startup.
func (m *Metrics) SetCheckpointNumber(number int) {
	if m != nil {
		m.checkpointNumber.Set(float64(number))
	}
}

func (m *Metrics) SetPeers(n int) {
	if m != nil {
		m.peers.Set(float64(n))
	}
}
