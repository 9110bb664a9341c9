//go:build linux

// File: reactor/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket is the raw non-blocking descriptor shared by listening and client
// sockets: identity, connected flag, and the bounded chunked writer.

package reactor

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

var socketIDs atomic.Uint64

// pollable is anything the Poll registry can hold.
type pollable interface {
	base() *Socket
}

// Socket wraps one file descriptor registered with a Poll.
type Socket struct {
	fd         int
	id         uint64
	remoteAddr string
	poll       *Poll

	connected atomic.Bool
	destroyed atomic.Bool

	// handoff is bumped before every re-arm and loaded on every event, so
	// the worker that receives the next one-shot event observes all writes
	// made by the worker that re-armed the socket.
	handoff atomic.Uint64

	wantRead    bool
	dataPending bool // last read filled the scratch buffer

	chunk    int
	writeBuf []byte

	onAborted func()
}

func (s *Socket) init(fd int, remoteAddr string, chunk int) {
	s.fd = fd
	s.id = socketIDs.Add(1)
	s.remoteAddr = remoteAddr
	s.wantRead = true
	s.chunk = chunk
	s.connected.Store(true)
}

func (s *Socket) base() *Socket { return s }

// ID returns the process-unique socket identity.
func (s *Socket) ID() uint64 { return s.id }

// RemoteAddr returns the peer address, empty for listening sockets.
func (s *Socket) RemoteAddr() string { return s.remoteAddr }

// Connected reports whether the socket is still usable.
func (s *Socket) Connected() bool { return s.connected.Load() }

// Pending returns the number of buffered, unsent bytes.
func (s *Socket) Pending() int { return len(s.writeBuf) }

// Disconnect marks the socket for teardown once the current event is done.
func (s *Socket) Disconnect() { s.connected.Store(false) }

// Close shuts down the sending side and marks the socket disconnected.
func (s *Socket) Close() {
	if s.connected.Swap(false) {
		_ = unix.Shutdown(s.fd, unix.SHUT_WR)
	}
}

// claim pairs with handOff of the worker that re-armed the socket.
func (s *Socket) claim() { s.handoff.Load() }

// handOff publishes this worker's writes to whoever handles the next event.
// It must run before the re-arm.
func (s *Socket) handOff() { s.handoff.Add(1) }

func (s *Socket) logger() *slog.Logger {
	if s.poll != nil {
		return s.poll.logger
	}
	return slog.Default()
}

// receive performs one non-blocking read into scratch. ok is false when the
// peer closed the connection or the read failed for good.
func (s *Socket) receive(scratch []byte) (n int, ok bool) {
	n, err := unix.Read(s.fd, scratch)
	switch {
	case err == nil && n > 0:
		s.dataPending = n == len(scratch)
		return n, true
	case err == nil:
		s.dataPending = false
		return 0, false
	case isTransient(err):
		s.dataPending = false
		return 0, true
	case isPeerGone(err):
		s.abort(err)
		return 0, false
	default:
		if s.poll != nil {
			s.poll.warn("receive failed", "socket_id", s.id, "error", err)
		}
		return 0, false
	}
}

// Write appends as much of p as fits into the outbound chunk and returns
// the number of bytes taken. The chunk is flushed when it is full or when
// final is set; a final flush is sent with TCP_NODELAY enabled.
func (s *Socket) Write(p []byte, final bool) int {
	if !s.connected.Load() {
		return 0
	}
	take := min(max(s.chunk-len(s.writeBuf), 0), len(p))
	if s.writeBuf == nil {
		if take == 0 {
			return 0
		}
		s.writeBuf = s.borrow()
	}
	s.writeBuf = append(s.writeBuf, p[:take]...)
	if len(s.writeBuf) >= s.chunk || final {
		if final {
			s.setNoDelay(true)
		}
		s.Flush()
		if final {
			s.setNoDelay(false)
		}
	}
	return take
}

// Flush sends buffered bytes until the kernel would block.
func (s *Socket) Flush() {
	for len(s.writeBuf) > 0 {
		n, err := unix.Write(s.fd, s.writeBuf)
		if err != nil {
			switch {
			case isTransient(err):
				if errors.Is(err, unix.EINTR) {
					continue
				}
			case isPeerGone(err):
				s.writeBuf = s.writeBuf[:0]
				s.giveBack()
				s.abort(err)
			default:
				if s.poll != nil {
					s.poll.warn("send failed", "socket_id", s.id, "error", err)
				}
			}
			return
		}
		if s.poll != nil {
			s.poll.metrics.AddBytesSent(n)
		}
		s.writeBuf = append(s.writeBuf[:0], s.writeBuf[n:]...)
	}
	s.giveBack()
}

// borrow takes an outbound chunk from the poll's pool when sizes match.
func (s *Socket) borrow() []byte {
	if s.poll != nil && s.poll.buffers.Size() == s.chunk {
		return s.poll.buffers.Get()
	}
	return make([]byte, 0, s.chunk)
}

// giveBack returns an empty outbound chunk to the pool.
func (s *Socket) giveBack() {
	if s.writeBuf == nil || len(s.writeBuf) > 0 {
		return
	}
	if s.poll != nil && s.poll.buffers.Size() == s.chunk {
		s.poll.buffers.Put(s.writeBuf)
	}
	s.writeBuf = nil
}

func (s *Socket) setNoDelay(on bool) {
	v := 0
	if on {
		v = 1
	}
	if err := unix.SetsockoptInt(s.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v); err != nil {
		s.logger().Debug("set TCP_NODELAY", "socket_id", s.id, "error", err)
	}
}

// abort marks the socket dead after the peer vanished and tells the
// protocol layer once.
func (s *Socket) abort(err error) {
	if !s.connected.Swap(false) {
		return
	}
	s.logger().Debug("socket aborted", "socket_id", s.id, "remote_addr", s.remoteAddr, "error", err)
	if s.onAborted != nil {
		s.onAborted()
	}
}

// destroy releases the descriptor exactly once. It reports whether this
// call did the release.
func (s *Socket) destroy() bool {
	if !s.destroyed.CompareAndSwap(false, true) {
		return false
	}
	s.connected.Store(false)
	_ = unix.Close(s.fd)
	if s.writeBuf != nil {
		s.writeBuf = s.writeBuf[:0]
		s.giveBack()
	}
	return true
}
