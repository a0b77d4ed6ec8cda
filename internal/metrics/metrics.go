// Package metrics holds the prometheus collectors of the realtime core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "messzola"

type Metrics struct {
	connections   prometheus.Gauge
	onlineUsers   prometheus.Gauge
	activeCalls   prometheus.Gauge
	envelopes     *prometheus.CounterVec
	droppedFrames *prometheus.CounterVec
	droppedEvents prometheus.Counter
	callEvents    *prometheus.CounterVec
	terminated    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Number of authenticated websocket connections",
		}),
		onlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Number of users with at least one live connection",
		}),
		activeCalls: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of rooms with at least one participant in a call",
		}),
		envelopes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_total",
			Help:      "Inbound envelopes by type and outcome",
		}, []string{"type", "outcome"}),
		droppedFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "Outbound frames that were not delivered",
		}, []string{"reason"}),
		droppedEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Persistence events dropped because the queue was full",
		}),
		callEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call lifecycle events by kind",
		}, []string{"kind"}),
		terminated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_terminations_total",
			Help:      "Connections terminated for missing a heartbeat",
		}),
	}
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) SetOnlineUsers(n int) {
	if m != nil {
		m.onlineUsers.Set(float64(n))
	}
}

func (m *Metrics) SetActiveCalls(n int) {
	if m != nil {
		m.activeCalls.Set(float64(n))
	}
}

func (m *Metrics) Envelope(typ, outcome string) {
	if m != nil {
		m.envelopes.WithLabelValues(typ, outcome).Inc()
	}
}

func (m *Metrics) FrameDropped(reason string) {
	if m != nil {
		m.droppedFrames.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) EventDropped() {
	if m != nil {
		m.droppedEvents.Inc()
	}
}

func (m *Metrics) CallEvent(kind string) {
	if m != nil {
		m.callEvents.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) HeartbeatTerminated() {
	if m != nil {
		m.terminated.Inc()
	}
}
