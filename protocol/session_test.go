// File: protocol/session_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/momentics/hioload-poll/api"
	"github.com/momentics/hioload-poll/fake"
	"github.com/momentics/hioload-poll/protocol"
)

func newTestSession(t *testing.T, d api.Dispatcher) (*protocol.Session, *fake.Socket) {
	t.Helper()
	sock := fake.NewSocket(1)
	s := protocol.NewSession(sock, d, nil, nil, protocol.SessionOptions{}, nil, nil)
	return s, sock
}

// event runs one reactor-style dispatch cycle.
func event(s *protocol.Session, data []byte) {
	s.PreDispatch()
	if data != nil {
		s.OnData(data)
	}
	s.PostDispatch()
}

// flushAll drives writable events until nothing is pending.
func flushAll(t *testing.T, s *protocol.Session, sock *fake.Socket) {
	t.Helper()
	for i := 0; s.WantWrite() && sock.Connected(); i++ {
		if i > 1000 {
			t.Fatal("session never drained its output")
		}
		s.PreDispatch()
		s.OnWritable()
		s.PostDispatch()
	}
}

func TestSessionEchoesPeerClose(t *testing.T) {
	t.Parallel()

	d := &fake.Dispatcher{}
	s, sock := newTestSession(t, d)

	event(s, clientFrame(t, true, api.OpcodeClose, nil))
	if want := []api.WsEvent{api.EventClose}; !cmp.Equal(want, d.Kinds()) {
		t.Fatalf("events: %v", cmp.Diff(want, d.Kinds()))
	}
	if !s.WantWrite() {
		t.Fatal("close reply not queued")
	}
	if !sock.Connected() {
		t.Fatal("disconnected before the close reply was flushed")
	}

	s.OnWritable()
	if want := []byte{0x88, 0x00}; !cmp.Equal(want, sock.Sent()) {
		t.Fatalf("sent: %v", cmp.Diff(want, sock.Sent()))
	}
	if sock.Connected() {
		t.Fatal("still connected after the close reply was flushed")
	}
}

func TestSessionClosePayloadEchoed(t *testing.T) {
	t.Parallel()

	s, sock := newTestSession(t, &fake.Dispatcher{})
	payload := []byte{0x03, 0xe9, 'b', 'y', 'e'}
	event(s, clientFrame(t, true, api.OpcodeClose, payload))
	flushAll(t, s, sock)

	want := append([]byte{0x88, byte(len(payload))}, payload...)
	if !cmp.Equal(want, sock.Sent()) {
		t.Fatalf("sent: %v", cmp.Diff(want, sock.Sent()))
	}
}

func TestSessionPingQueuesPongBeforeReply(t *testing.T) {
	t.Parallel()

	d := &fake.Dispatcher{}
	d.OnEvent = func(ev api.WsEvent, s api.Session) {
		if ev == api.EventPing {
			if err := s.Send(api.OpcodeText, []byte("seen")); err != nil {
				t.Errorf("Send: %v", err)
			}
		}
	}
	s, sock := newTestSession(t, d)

	event(s, clientFrame(t, true, api.OpcodePing, []byte("x")))
	if want := []api.WsEvent{api.EventPing}; !cmp.Equal(want, d.Kinds()) {
		t.Fatalf("events: %v", cmp.Diff(want, d.Kinds()))
	}
	if got := d.Events()[0].Message.Payload; string(got) != "x" {
		t.Errorf("ping payload seen by dispatcher = %q", got)
	}
	flushAll(t, s, sock)

	want := []byte{0x8a, 0x01, 'x', 0x81, 0x04, 's', 'e', 'e', 'n'}
	if !cmp.Equal(want, sock.Sent()) {
		t.Fatalf("sent: %v", cmp.Diff(want, sock.Sent()))
	}
	if !sock.Connected() {
		t.Fatal("ping must not close the connection")
	}
}

func TestSessionDispatchesMessagesInOrder(t *testing.T) {
	t.Parallel()

	d := &fake.Dispatcher{}
	d.OnEvent = func(ev api.WsEvent, s api.Session) {
		if ev == api.EventMessage {
			m := s.Message()
			_ = s.Send(m.Opcode, m.Payload)
		}
	}
	s, sock := newTestSession(t, d)

	var in []byte
	in = append(in, clientFrame(t, true, api.OpcodeText, []byte("one"))...)
	in = append(in, clientFrame(t, true, api.OpcodeBinary, []byte("two"))...)
	in = append(in, clientFrame(t, true, api.OpcodePong, nil)...)
	event(s, in)
	flushAll(t, s, sock)

	wantKinds := []api.WsEvent{api.EventMessage, api.EventMessage, api.EventPong}
	if !cmp.Equal(wantKinds, d.Kinds()) {
		t.Fatalf("events: %v", cmp.Diff(wantKinds, d.Kinds()))
	}
	want := []byte{0x81, 0x03, 'o', 'n', 'e', 0x82, 0x03, 't', 'w', 'o'}
	if !cmp.Equal(want, sock.Sent()) {
		t.Fatalf("sent: %v", cmp.Diff(want, sock.Sent()))
	}
}

func TestSessionPartialWrites(t *testing.T) {
	t.Parallel()

	s, sock := newTestSession(t, &fake.Dispatcher{})
	sock.SetAccept(3)

	payload := bytes.Repeat([]byte{0x42}, 200)
	if err := s.Send(api.OpcodeBinary, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := s.Send(api.OpcodeText, []byte("tail")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	s.PostDispatch()

	s.OnWritable()
	if sock.Pending() == 0 {
		t.Fatal("expected bytes to remain buffered after a short write")
	}
	if !s.WantWrite() {
		t.Fatal("WantWrite = false with buffered bytes")
	}
	flushAll(t, s, sock)

	var want []byte
	for _, f := range protocol.FormatFrames(api.OpcodeBinary, payload, protocol.DefaultMaxPayloadLength) {
		want = append(want, f.Data...)
	}
	want = append(want, 0x81, 0x04, 't', 'a', 'i', 'l')
	if !cmp.Equal(want, sock.Sent()) {
		t.Fatalf("sent %d bytes, want %d: %v", len(sock.Sent()), len(want), cmp.Diff(want, sock.Sent()))
	}
}

func TestSessionFrameLargerThanChunk(t *testing.T) {
	t.Parallel()

	s, sock := newTestSession(t, &fake.Dispatcher{})
	sock.SetChunk(16)
	payload := bytes.Repeat([]byte("abcdefghij"), 10)
	if err := s.Send(api.OpcodeBinary, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	s.PostDispatch()
	s.OnWritable()

	want := protocol.FormatFrames(api.OpcodeBinary, payload, protocol.DefaultMaxPayloadLength)[0].Data
	if !cmp.Equal(want, sock.Sent()) {
		t.Fatalf("sent: %v", cmp.Diff(want, sock.Sent()))
	}
	if s.WantWrite() {
		t.Error("WantWrite = true after everything was sent")
	}
	if sock.FinalFlushes() == 0 {
		t.Error("last frame was not written as final")
	}
}

func TestSessionServerClose(t *testing.T) {
	t.Parallel()

	d := &fake.Dispatcher{}
	s, sock := newTestSession(t, d)

	if err := s.Close(protocol.CloseNormalClosure, "bye"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Send(api.OpcodeText, []byte("late")); !errors.Is(err, api.ErrSocketClosed) {
		t.Fatalf("Send after Close = %v, want ErrSocketClosed", err)
	}
	// the peer's close crosses ours and must not be echoed
	event(s, clientFrame(t, true, api.OpcodeClose, []byte{0x03, 0xe8}))
	flushAll(t, s, sock)

	want := []byte{0x88, 0x05, 0x03, 0xe8, 'b', 'y', 'e'}
	if !cmp.Equal(want, sock.Sent()) {
		t.Fatalf("sent: %v", cmp.Diff(want, sock.Sent()))
	}
	if sock.Connected() {
		t.Fatal("still connected after the close frame was flushed")
	}
	if wantKinds := []api.WsEvent{api.EventClose}; !cmp.Equal(wantKinds, d.Kinds()) {
		t.Fatalf("events: %v", cmp.Diff(wantKinds, d.Kinds()))
	}
}

func TestSessionSendValidation(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t, nil)
	tests := []struct {
		name    string
		op      api.Opcode
		payload []byte
	}{
		{"continuation", api.OpcodeContinuation, []byte("x")},
		{"close", api.OpcodeClose, nil},
		{"oversized ping", api.OpcodePing, make([]byte, 126)},
	}
	for _, tc := range tests {
		if err := s.Send(tc.op, tc.payload); !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("%s: Send = %v, want ErrInvalidArgument", tc.name, err)
		}
	}
	if err := s.Send(api.OpcodePing, make([]byte, 125)); err != nil {
		t.Errorf("125-byte ping rejected: %v", err)
	}
}

func TestSessionProtocolViolationSendsCloseCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		maxSize uint64
		input   []byte
		want    []byte
	}{
		{
			name:  "unmasked frame",
			input: []byte{0x81, 0x02, 'h', 'i'},
			want:  []byte{0x88, 0x02, 0x03, 0xea},
		},
		{
			name:    "message too big",
			maxSize: 4,
			input:   clientFrame(t, true, api.OpcodeBinary, []byte("too long")),
			want:    []byte{0x88, 0x02, 0x03, 0xf1},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := &fake.Dispatcher{}
			sock := fake.NewSocket(1)
			opts := protocol.SessionOptions{MaxMessageSize: tc.maxSize}
			s := protocol.NewSession(sock, d, nil, nil, opts, nil, nil)

			event(s, tc.input)
			// bytes after the violation are ignored
			event(s, clientFrame(t, true, api.OpcodeText, []byte("x")))
			if len(d.Kinds()) != 0 {
				t.Fatalf("dispatched %v after a protocol violation", d.Kinds())
			}
			if !s.WantWrite() {
				t.Fatal("no close frame queued")
			}
			flushAll(t, s, sock)

			if !cmp.Equal(tc.want, sock.Sent()) {
				t.Fatalf("sent: %v", cmp.Diff(tc.want, sock.Sent()))
			}
			if sock.Connected() {
				t.Fatal("still connected after the close frame was flushed")
			}
		})
	}
}

func TestSessionPrefaceAndAbort(t *testing.T) {
	t.Parallel()

	d := &fake.Dispatcher{}
	sock := fake.NewSocket(7)
	preface := []byte("HTTP/1.1 101 Switching Protocols\r\n\r\n")
	s := protocol.NewSession(sock, d, nil, preface, protocol.SessionOptions{}, nil, nil)
	if s.ID() == "" || s.SocketID() != 7 {
		t.Fatalf("identity: id=%q socket=%d", s.ID(), s.SocketID())
	}
	if err := s.Send(api.OpcodeText, []byte("hi")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	s.PostDispatch()
	flushAll(t, s, sock)

	want := append(append([]byte(nil), preface...), 0x81, 0x02, 'h', 'i')
	if !cmp.Equal(want, sock.Sent()) {
		t.Fatalf("sent: %v", cmp.Diff(want, sock.Sent()))
	}

	s.OnAborted()
	s.OnAborted()
	if wantKinds := []api.WsEvent{api.EventClose}; !cmp.Equal(wantKinds, d.Kinds()) {
		t.Fatalf("events: %v", cmp.Diff(wantKinds, d.Kinds()))
	}
	s.Release()
	if s.WantWrite() {
		t.Error("WantWrite = true after Release")
	}
}
