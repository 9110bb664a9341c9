// File: control/metrics_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/momentics/hioload-poll/control"
)

func TestMetricsNilReceiver(t *testing.T) {
	var m *control.Metrics
	m.SocketOpened()
	m.SocketClosed(control.ReasonLocal)
	m.AddBytesReceived(10)
	m.AddBytesSent(10)
	m.FrameReceived()
	m.FrameSent()
	m.Dispatched("message")
	m.ProtocolViolation()
	m.WaitError()
	if m.Registry() != nil {
		t.Fatal("nil metrics returned a registry")
	}
}

func TestMetricsRecord(t *testing.T) {
	m := control.NewMetrics("test")

	m.SocketOpened()
	m.SocketOpened()
	m.SocketClosed(control.ReasonPeerClosed)
	m.AddBytesReceived(100)
	m.AddBytesReceived(-1)
	m.AddBytesSent(42)
	m.FrameReceived()
	m.FrameSent()
	m.FrameSent()
	m.Dispatched("message")
	m.Dispatched("message")
	m.Dispatched("close")
	m.ProtocolViolation()
	m.WaitError()

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"connected", testutil.ToFloat64(m.ConnectedSockets), 1},
		{"accepted", testutil.ToFloat64(m.Accepted), 2},
		{"peer closed", testutil.ToFloat64(m.Disconnects.WithLabelValues(control.ReasonPeerClosed)), 1},
		{"bytes received", testutil.ToFloat64(m.BytesReceived), 100},
		{"bytes sent", testutil.ToFloat64(m.BytesSent), 42},
		{"frames received", testutil.ToFloat64(m.FramesReceived), 1},
		{"frames sent", testutil.ToFloat64(m.FramesSent), 2},
		{"messages", testutil.ToFloat64(m.MessagesDispatched.WithLabelValues("message")), 2},
		{"closes", testutil.ToFloat64(m.MessagesDispatched.WithLabelValues("close")), 1},
		{"violations", testutil.ToFloat64(m.ProtocolViolations), 1},
		{"wait errors", testutil.ToFloat64(m.PollWaitErrors), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	n, err := testutil.GatherAndCount(m.Registry(), "test_disconnects_total", "test_messages_dispatched_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 3 {
		t.Errorf("labelled series = %d, want 3", n)
	}
}
