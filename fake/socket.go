// File: fake/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the socket and
// dispatcher seams of the protocol layer.

package fake

import (
	"sync"

	"github.com/momentics/hioload-poll/api"
)

// DefaultChunk matches the reactor's default write chunk.
const DefaultChunk = 512 * 1024

var _ api.SocketIO = (*Socket)(nil)

// Socket is a fake implementation of api.SocketIO. It buffers writes in a
// chunk exactly like the reactor socket and "sends" them into an in-memory
// record, optionally accepting only a limited number of bytes per flush.
type Socket struct {
	mu         sync.Mutex
	id         uint64
	remoteAddr string
	chunk      int
	accept     int // bytes accepted per flush, <0 = unlimited
	buf        []byte
	sent       []byte
	connected  bool
	finals     int
}

// NewSocket creates a connected fake socket with the default chunk size and
// no write limit.
func NewSocket(id uint64) *Socket {
	return &Socket{
		id:         id,
		remoteAddr: "192.0.2.1:50000",
		chunk:      DefaultChunk,
		accept:     -1,
		connected:  true,
	}
}

// SetChunk changes the outbound chunk size.
func (s *Socket) SetChunk(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunk = n
}

// SetAccept limits how many bytes each flush hands to the "kernel";
// n < 0 removes the limit.
func (s *Socket) SetAccept(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accept = n
}

// ID returns the socket identity.
func (s *Socket) ID() uint64 { return s.id }

// RemoteAddr returns a fixed documentation address.
func (s *Socket) RemoteAddr() string { return s.remoteAddr }

// Write buffers up to the free chunk space and flushes when the chunk is
// full or final is set.
func (s *Socket) Write(p []byte, final bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return 0
	}
	take := min(max(s.chunk-len(s.buf), 0), len(p))
	s.buf = append(s.buf, p[:take]...)
	if len(s.buf) >= s.chunk || final {
		if final {
			s.finals++
		}
		s.flushLocked()
	}
	return take
}

// Flush sends buffered bytes, subject to the accept limit.
func (s *Socket) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Socket) flushLocked() {
	if !s.connected {
		return
	}
	n := len(s.buf)
	if s.accept >= 0 {
		n = min(n, s.accept)
	}
	s.sent = append(s.sent, s.buf[:n]...)
	s.buf = append(s.buf[:0], s.buf[n:]...)
}

// Pending returns buffered, unsent bytes.
func (s *Socket) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Connected reports whether Disconnect has not been called yet.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Disconnect marks the socket closed.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

// Sent returns a copy of everything flushed so far.
func (s *Socket) Sent() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.sent...)
}

// TakeSent returns and clears everything flushed so far.
func (s *Socket) TakeSent() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sent
	s.sent = nil
	return out
}

// FinalFlushes counts writes made with final set.
func (s *Socket) FinalFlushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finals
}
