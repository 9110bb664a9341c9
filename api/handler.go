// File: api/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package api defines the application-facing dispatch contract.

package api

import "net/http"

// Session is the per-connection capability handed to a Dispatcher.
// All methods must be called from within Dispatch, on the worker that owns
// the connection.
type Session interface {
	// ID returns a unique session identifier.
	ID() string
	// SocketID returns the monotonic identity of the underlying socket.
	SocketID() uint64
	// RemoteAddr returns the peer address in host:port form.
	RemoteAddr() string
	// Request returns the HTTP upgrade request that opened the session.
	Request() *http.Request
	// Message returns the message currently being dispatched.
	Message() Message
	// Send queues an outbound message. The payload is copied.
	Send(op Opcode, payload []byte) error
	// Close starts the closing handshake with the given status code.
	Close(code uint16, reason string) error
}

// Dispatcher receives decoded WebSocket events. Dispatch runs synchronously
// on a reactor worker and must not block.
type Dispatcher interface {
	Dispatch(ev WsEvent, s Session)
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(ev WsEvent, s Session)

// Dispatch calls f(ev, s).
func (f DispatcherFunc) Dispatch(ev WsEvent, s Session) {
	f(ev, s)
}
