// File: protocol/plain.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PlainConn serves a connection whose header block is not a WebSocket
// upgrade: one response is produced by an HTTPHandler, flushed, and the
// connection is closed.

package protocol

import (
	"net/http"

	"github.com/momentics/hioload-poll/api"
)

// HTTPHandler answers a plain HTTP request. req is nil when the request
// head could not be parsed; resp is pre-set to 400 in that case.
type HTTPHandler interface {
	ServeRequest(req *http.Request, resp *HTTPResponse)
}

// HTTPHandlerFunc adapts a function to HTTPHandler.
type HTTPHandlerFunc func(req *http.Request, resp *HTTPResponse)

// ServeRequest calls f(req, resp).
func (f HTTPHandlerFunc) ServeRequest(req *http.Request, resp *HTTPResponse) {
	f(req, resp)
}

// UpgradeRequired is the default plain-request handler.
var UpgradeRequired HTTPHandler = HTTPHandlerFunc(func(req *http.Request, resp *HTTPResponse) {
	if req == nil {
		return
	}
	resp.SetStatus(http.StatusUpgradeRequired).
		SetHeader(HeaderUpgrade, "websocket").
		SetHeader("Content-Type", "text/plain; charset=utf-8")
	_, _ = resp.WriteString("websocket upgrade required\n")
})

// PlainConn writes a single response and then disconnects.
type PlainConn struct {
	sock api.SocketIO
	out  []byte
	off  int
}

// NewPlainConn parses the request head in header and runs h to build the
// response. A nil h uses UpgradeRequired.
func NewPlainConn(sock api.SocketIO, header []byte, h HTTPHandler) *PlainConn {
	if h == nil {
		h = UpgradeRequired
	}
	resp := NewHTTPResponse()
	req, _, err := ReadRequest(header)
	if err != nil {
		req = nil
		resp.SetStatus(http.StatusBadRequest)
	}
	h.ServeRequest(req, resp)
	resp.SetHeader("Connection", "close")
	return NewResponseConn(sock, resp)
}

// NewResponseConn sends an already built response and disconnects.
func NewResponseConn(sock api.SocketIO, resp *HTTPResponse) *PlainConn {
	return &PlainConn{sock: sock, out: resp.Bytes()}
}

// PreDispatch is a no-op.
func (c *PlainConn) PreDispatch() {}

// PostDispatch is a no-op.
func (c *PlainConn) PostDispatch() {}

// OnData discards request bodies and pipelined requests.
func (c *PlainConn) OnData([]byte) {}

// WantWrite reports whether response bytes remain.
func (c *PlainConn) WantWrite() bool {
	return c.off < len(c.out) || c.sock.Pending() > 0
}

// OnWritable writes the response and disconnects once it is flushed.
func (c *PlainConn) OnWritable() {
	if c.off < len(c.out) {
		c.off += c.sock.Write(c.out[c.off:], true)
	} else if c.sock.Pending() > 0 {
		c.sock.Flush()
	}
	if c.off == len(c.out) && c.sock.Pending() == 0 {
		c.sock.Disconnect()
	}
}

// OnAborted is a no-op.
func (c *PlainConn) OnAborted() {}

// Release drops the response buffer.
func (c *PlainConn) Release() {
	c.out = nil
}
