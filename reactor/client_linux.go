//go:build linux

// File: reactor/client_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ClientSocket is an accepted connection. Until the protocol is known it
// buffers the request head; afterwards every callback goes to its Conn.

package reactor

import (
	"github.com/momentics/hioload-poll/api"
	"github.com/momentics/hioload-poll/protocol"
)

var _ api.SocketIO = (*ClientSocket)(nil)

// ClientSocket binds a connected descriptor to its protocol Conn.
type ClientSocket struct {
	Socket
	received []byte
	conn     protocol.Conn
}

func newClientSocket(fd int, remoteAddr string, chunk int) *ClientSocket {
	c := &ClientSocket{}
	c.init(fd, remoteAddr, chunk)
	c.onAborted = func() {
		if c.conn != nil {
			c.conn.OnAborted()
		}
	}
	return c
}

// Conn returns the protocol handler, nil until the request head arrived.
func (c *ClientSocket) Conn() protocol.Conn { return c.conn }

func (c *ClientSocket) preDispatch() {
	if c.conn != nil {
		c.conn.PreDispatch()
	}
}

func (c *ClientSocket) onData(data []byte) {
	if c.conn != nil {
		c.conn.OnData(data)
		return
	}
	c.received = append(c.received, data...)
	if conn := c.poll.acceptor.Route(c, c.received); conn != nil {
		c.conn = conn
		c.received = nil
	}
}

func (c *ClientSocket) onWritable() {
	if c.conn != nil {
		c.conn.OnWritable()
	} else {
		c.Flush()
	}
}

func (c *ClientSocket) postDispatch() {
	if c.conn != nil {
		c.conn.PostDispatch()
	}
}

func (c *ClientSocket) wantsWrite() bool {
	if c.conn != nil {
		return c.conn.WantWrite()
	}
	return c.Pending() > 0
}

// release frees protocol state after the descriptor is gone.
func (c *ClientSocket) release() {
	if c.conn != nil {
		c.conn.Release()
	}
	c.received = nil
}
