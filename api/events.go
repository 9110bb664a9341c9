// File: api/events.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package api defines core event types for hioload-poll.

package api

// WsEvent identifies why a Dispatcher is being invoked.
type WsEvent int

const (
	// EventMessage carries a complete text or binary message.
	EventMessage WsEvent = iota
	// EventClose reports a close frame from the peer or an aborted connection.
	EventClose
	// EventPing reports a ping; the pong reply is already queued.
	EventPing
	// EventPong reports a pong from the peer.
	EventPong
)

func (e WsEvent) String() string {
	switch e {
	case EventMessage:
		return "message"
	case EventClose:
		return "close"
	case EventPing:
		return "ping"
	case EventPong:
		return "pong"
	default:
		return "unknown"
	}
}
