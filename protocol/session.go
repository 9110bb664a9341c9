// File: protocol/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package protocol implements the per-connection WebSocket session.
//
// Session is the single protocol-state type for every WebSocket connection.
// It reaches its socket only through api.SocketIO and its application only
// through api.Dispatcher. The reactor calls PreDispatch, OnData, OnWritable,
// PostDispatch and OnAborted from the worker that holds the connection's
// one-shot event slot, so none of the state below is locked.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/momentics/hioload-poll/api"
	"github.com/momentics/hioload-poll/control"
)

// SessionOptions tunes the framing of a session.
type SessionOptions struct {
	// MaxPayloadLength is the largest payload per outbound frame.
	MaxPayloadLength int
	// MaxMessageSize bounds a reassembled inbound message; 0 = unlimited.
	MaxMessageSize uint64
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.MaxPayloadLength < MaxControlPayloadLen {
		o.MaxPayloadLength = DefaultMaxPayloadLength
	}
	return o
}

// Session holds the upgrade request, the inbound parser and the outbound
// message and frame queues of one connection.
type Session struct {
	id         string
	sock       api.SocketIO
	dispatcher api.Dispatcher
	logger     *slog.Logger
	metrics    *control.Metrics
	opts       SessionOptions

	request *http.Request

	parser   *Parser
	inbound  *MessageQueue // decoded, awaiting dispatch
	outbound *MessageQueue // queued by the application, awaiting framing
	frames   *FrameQueue   // serialized, awaiting the socket

	current api.Message

	closeSent     bool // a close frame has been queued
	closeRecv     bool // the peer's close frame has been processed
	closeFlushing bool // the close frame left the queue, wait for the socket buffer
	closeNotified bool // EventClose already dispatched
	failed        bool // a protocol violation stopped inbound processing
}

// NewSession builds a session for an upgraded connection. preface, when not
// empty, is written before any frame (normally the 101 response).
func NewSession(sock api.SocketIO, d api.Dispatcher, req *http.Request, preface []byte,
	opts SessionOptions, logger *slog.Logger, metrics *control.Metrics) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	s := &Session{
		id:         uuid.NewString(),
		sock:       sock,
		dispatcher: d,
		logger:     logger.With("socket_id", sock.ID(), "remote_addr", sock.RemoteAddr()),
		metrics:    metrics,
		opts:       opts,
		request:    req,
		parser:     NewParser(opts.MaxMessageSize),
		inbound:    NewMessageQueue(),
		outbound:   NewMessageQueue(),
		frames:     NewFrameQueue(),
	}
	if len(preface) > 0 {
		s.frames.Push(rawFrame(preface))
	}
	return s
}

// ID returns the session uuid.
func (s *Session) ID() string { return s.id }

// SocketID returns the identity of the underlying socket.
func (s *Session) SocketID() uint64 { return s.sock.ID() }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string { return s.sock.RemoteAddr() }

// Request returns the upgrade request.
func (s *Session) Request() *http.Request { return s.request }

// Message returns the message currently being dispatched.
func (s *Session) Message() api.Message { return s.current }

// Send queues an outbound message. The payload is copied.
func (s *Session) Send(op api.Opcode, payload []byte) error {
	if s.closeSent || !s.sock.Connected() {
		return api.ErrSocketClosed
	}
	switch {
	case op == api.OpcodeContinuation:
		return fmt.Errorf("%w: cannot send a bare continuation", api.ErrInvalidArgument)
	case op == api.OpcodeClose:
		return fmt.Errorf("%w: use Close to send a close frame", api.ErrInvalidArgument)
	case op.IsControl() && len(payload) > MaxControlPayloadLen:
		return fmt.Errorf("%w: control payload %d > %d", api.ErrInvalidArgument, len(payload), MaxControlPayloadLen)
	}
	s.enqueue(op, append([]byte(nil), payload...))
	return nil
}

// Close queues a close frame with code and reason. The connection is torn
// down as soon as the frame has been flushed.
func (s *Session) Close(code uint16, reason string) error {
	if s.closeSent {
		return nil
	}
	if !s.sock.Connected() {
		return api.ErrSocketClosed
	}
	if len(reason) > MaxControlPayloadLen-2 {
		reason = reason[:MaxControlPayloadLen-2]
	}
	payload := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(reason)), code)
	payload = append(payload, reason...)
	s.enqueue(api.OpcodeClose, payload)
	return nil
}

// enqueue records an outbound message; it is framed by readyFrames.
func (s *Session) enqueue(op api.Opcode, payload []byte) {
	if op == api.OpcodeClose {
		s.closeSent = true
	}
	s.outbound.Push(api.Message{Opcode: op, Payload: payload})
}

// readyFrames turns queued outbound messages into frames, in order.
func (s *Session) readyFrames() {
	for {
		m, ok := s.outbound.Pop()
		if !ok {
			return
		}
		for _, f := range FormatFrames(m.Opcode, m.Payload, s.opts.MaxPayloadLength) {
			s.frames.Push(f)
		}
	}
}

// PreDispatch frames whatever was queued since the last event.
func (s *Session) PreDispatch() { s.readyFrames() }

// PostDispatch frames whatever the dispatcher queued during this event.
func (s *Session) PostDispatch() { s.readyFrames() }

// WantWrite reports whether the session has bytes waiting for the socket.
func (s *Session) WantWrite() bool {
	return s.frames.Len() > 0 || s.outbound.Len() > 0 || s.sock.Pending() > 0
}

// OnData feeds received bytes to the parser and dispatches every message
// they complete. A protocol violation fails the connection without
// dispatching anything further.
func (s *Session) OnData(data []byte) {
	if s.closeRecv || s.failed {
		return
	}
	s.parser.Feed(data)
	for {
		msg, err := s.parser.Next()
		if err != nil {
			s.violation(err)
			return
		}
		if msg == nil {
			break
		}
		s.metrics.FrameReceived()
		s.inbound.Push(*msg)
	}
	for {
		m, ok := s.inbound.Pop()
		if !ok {
			return
		}
		s.handle(m)
		if s.closeRecv || !s.sock.Connected() {
			s.inbound.Clear()
			return
		}
	}
}

// violation fails the connection: inbound bytes are dropped from now on and
// a close frame carrying 1002 (1009 for an oversized message) is queued.
// The socket is torn down once that frame is flushed.
func (s *Session) violation(err error) {
	s.metrics.ProtocolViolation()
	if errors.Is(err, api.ErrMaskMissing) {
		s.logger.Warn("unmasked client frame, closing", "error", err)
	} else {
		s.logger.Warn("websocket protocol violation, closing", "error", err)
	}
	s.failed = true
	s.inbound.Clear()
	s.parser.Reset()
	if s.closeSent {
		return
	}
	code := uint16(CloseProtocolError)
	if errors.Is(err, api.ErrMessageTooLarge) {
		code = CloseMessageTooBig
	}
	if cerr := s.Close(code, ""); cerr != nil {
		s.sock.Disconnect()
	}
}

// handle routes one completed message by opcode.
func (s *Session) handle(m api.Message) {
	s.current = m
	defer func() { s.current = api.Message{} }()

	switch m.Opcode {
	case api.OpcodeText, api.OpcodeBinary:
		s.dispatch(api.EventMessage)
	case api.OpcodeClose:
		s.closeRecv = true
		if s.closeSent {
			// answer to our own close; OnWritable tears down after the flush
			s.notifyClose()
			return
		}
		s.enqueue(api.OpcodeClose, append([]byte(nil), m.Payload...))
		s.notifyClose()
	case api.OpcodePing:
		s.enqueue(api.OpcodePong, append([]byte(nil), m.Payload...))
		s.dispatch(api.EventPing)
	case api.OpcodePong:
		s.dispatch(api.EventPong)
	default:
		s.logger.Warn("unsupported opcode", "opcode", m.Opcode.String())
	}
}

func (s *Session) notifyClose() {
	if s.closeNotified {
		return
	}
	s.closeNotified = true
	s.dispatch(api.EventClose)
}

func (s *Session) dispatch(ev api.WsEvent) {
	s.metrics.Dispatched(ev.String())
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ev, s)
	}
}

// OnWritable drains the frame queue through the socket's chunked writer.
// Frames are written strictly in order; a frame that the socket only
// partially accepts stays at the head until the next writable event.
func (s *Session) OnWritable() {
	if s.sock.Pending() > 0 {
		s.sock.Flush()
		if s.sock.Pending() > 0 {
			return
		}
	}
	for s.sock.Connected() && !s.closeFlushing {
		f := s.frames.Front()
		if f == nil {
			break
		}
		final := s.frames.Len() == 1
		n := s.sock.Write(f.Remaining(), final)
		f.Advance(n)
		if !f.Done() {
			if n == 0 || s.sock.Pending() > 0 {
				// kernel buffer full; resume on the next writable event
				break
			}
			continue
		}
		s.frames.Pop()
		s.metrics.FrameSent()
		if f.Opcode == api.OpcodeClose {
			s.closeFlushing = true
			s.frames.Clear()
			if s.sock.Pending() > 0 {
				// the close frame is still buffered; flush it before teardown
				s.sock.Flush()
			}
		}
	}
	if s.closeFlushing && s.sock.Pending() == 0 {
		s.sock.Disconnect()
	}
}

// OnAborted reports an unexpected teardown to the dispatcher once.
func (s *Session) OnAborted() {
	s.notifyClose()
}

// Release frees every queued message, frame and partial parser state.
func (s *Session) Release() {
	s.frames.Clear()
	s.inbound.Clear()
	s.outbound.Clear()
	s.parser.Reset()
	s.current = api.Message{}
}
