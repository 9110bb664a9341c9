// File: api/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contract between a protocol session and the socket that carries it.

package api

// SocketIO is what a protocol session needs from its connection: chunked
// writes, the size of unsent buffered bytes, and a way to request teardown.
type SocketIO interface {
	// Write buffers up to len(p) bytes and flushes when the chunk threshold
	// is reached or final is set. It returns the number of bytes accepted.
	Write(p []byte, final bool) int
	// Flush retries any buffered bytes left by a partial write.
	Flush()
	// Pending returns the number of bytes still buffered for sending.
	Pending() int
	// Connected reports whether the socket is still usable.
	Connected() bool
	// Disconnect marks the socket for teardown by the reactor.
	Disconnect()
	// ID returns the monotonic socket identity.
	ID() uint64
	// RemoteAddr returns the peer address.
	RemoteAddr() string
}
