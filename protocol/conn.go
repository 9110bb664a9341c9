// File: protocol/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn is the protocol half of a client socket. Acceptor decides, from the
// first bytes a connection sends, whether it becomes a WebSocket Session or
// a one-shot plain HTTP exchange.

package protocol

import (
	"log/slog"
	"net/http"

	"github.com/momentics/hioload-poll/api"
	"github.com/momentics/hioload-poll/control"
)

// Conn receives reactor callbacks for one client socket.
type Conn interface {
	// PreDispatch runs before the event is handled.
	PreDispatch()
	// OnData consumes bytes from one read.
	OnData(data []byte)
	// OnWritable drains pending output.
	OnWritable()
	// PostDispatch runs after the event is handled.
	PostDispatch()
	// OnAborted reports that the peer vanished.
	OnAborted()
	// WantWrite reports whether output is pending.
	WantWrite() bool
	// Release frees all per-connection state.
	Release()
}

var (
	_ Conn        = (*Session)(nil)
	_ Conn        = (*PlainConn)(nil)
	_ api.Session = (*Session)(nil)
)

// Acceptor routes freshly accepted connections.
type Acceptor struct {
	Dispatcher       api.Dispatcher
	HTTPHandler      HTTPHandler
	Session          SessionOptions
	MaxHandshakeSize int
	Logger           *slog.Logger
	Metrics          *control.Metrics
}

// Route inspects everything a new connection has sent so far. It returns
// nil while the header block is still incomplete.
func (a *Acceptor) Route(sock api.SocketIO, buf []byte) Conn {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := a.MaxHandshakeSize
	if limit <= 0 {
		limit = MaxHandshakeHeadersSize
	}

	if !HeaderComplete(buf) {
		if len(buf) > limit {
			logger.Warn("request header too large", "socket_id", sock.ID(), "bytes", len(buf))
			return NewResponseConn(sock, errorResponse(http.StatusRequestHeaderFieldsTooLarge))
		}
		return nil
	}

	if !IsWebSocketUpgrade(buf) {
		return NewPlainConn(sock, buf, a.HTTPHandler)
	}

	req, n, err := ReadUpgradeRequest(buf)
	if err != nil {
		logger.Warn("rejected websocket upgrade", "socket_id", sock.ID(), "error", err)
		return NewResponseConn(sock, errorResponse(http.StatusBadRequest))
	}
	s := NewSession(sock, a.Dispatcher, req, UpgradeResponse(req), a.Session, logger, a.Metrics)
	logger.Debug("websocket session established", "socket_id", sock.ID(), "session_id", s.ID(), "path", req.URL.Path)
	if n < len(buf) {
		s.OnData(buf[n:])
	}
	return s
}

func errorResponse(code int) *HTTPResponse {
	return NewHTTPResponse().
		SetStatus(code).
		SetHeader("Connection", "close")
}
