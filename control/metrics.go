// File: control/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus metrics for the reactor and the WebSocket protocol layer.
// A nil *Metrics is a valid receiver and records nothing.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Disconnect reasons used as the "reason" label.
const (
	ReasonPeerClosed = "peer_closed"
	ReasonAborted    = "aborted"
	ReasonLocal      = "local"
	ReasonShutdown   = "shutdown"
)

// Metrics groups all collectors registered by hioload-poll.
type Metrics struct {
	registry *prometheus.Registry

	ConnectedSockets   prometheus.Gauge
	Accepted           prometheus.Counter
	Disconnects        *prometheus.CounterVec
	BytesReceived      prometheus.Counter
	BytesSent          prometheus.Counter
	FramesReceived     prometheus.Counter
	FramesSent         prometheus.Counter
	MessagesDispatched *prometheus.CounterVec
	ProtocolViolations prometheus.Counter
	PollWaitErrors     prometheus.Counter
}

// NewMetrics creates collectors under namespace on a private registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ConnectedSockets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_sockets",
			Help:      "Client sockets currently registered with the reactor.",
		}),
		Accepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accepted_total",
			Help:      "Connections accepted by listen sockets.",
		}),
		Disconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Client sockets torn down, by reason.",
		}, []string{"reason"}),
		BytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes read from client sockets.",
		}),
		BytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to client sockets.",
		}),
		FramesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Complete WebSocket messages and control frames decoded.",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Outbound WebSocket frames fully written.",
		}),
		MessagesDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dispatched_total",
			Help:      "Events delivered to the dispatcher, by event.",
		}, []string{"event"}),
		ProtocolViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_violations_total",
			Help:      "Connections closed for WebSocket protocol violations.",
		}),
		PollWaitErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_wait_errors_total",
			Help:      "Failed readiness waits.",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SocketOpened records an accepted client socket.
func (m *Metrics) SocketOpened() {
	if m == nil {
		return
	}
	m.Accepted.Inc()
	m.ConnectedSockets.Inc()
}

// SocketClosed records a destroyed client socket.
func (m *Metrics) SocketClosed(reason string) {
	if m == nil {
		return
	}
	m.ConnectedSockets.Dec()
	m.Disconnects.WithLabelValues(reason).Inc()
}

// AddBytesReceived records n bytes read.
func (m *Metrics) AddBytesReceived(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesReceived.Add(float64(n))
}

// AddBytesSent records n bytes written.
func (m *Metrics) AddBytesSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesSent.Add(float64(n))
}

// FrameReceived records one decoded inbound unit.
func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
}

// FrameSent records one fully written outbound frame.
func (m *Metrics) FrameSent() {
	if m == nil {
		return
	}
	m.FramesSent.Inc()
}

// Dispatched records an event handed to the dispatcher.
func (m *Metrics) Dispatched(event string) {
	if m == nil {
		return
	}
	m.MessagesDispatched.WithLabelValues(event).Inc()
}

// ProtocolViolation records a connection dropped for a protocol error.
func (m *Metrics) ProtocolViolation() {
	if m == nil {
		return
	}
	m.ProtocolViolations.Inc()
}

// WaitError records a failed readiness wait.
func (m *Metrics) WaitError() {
	if m == nil {
		return
	}
	m.PollWaitErrors.Inc()
}
