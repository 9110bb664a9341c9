//go:build linux

// File: reactor/epoll_reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor - Linux epoll implementation.
//
// All workers wait on one epoll descriptor. Sockets are armed with
// EPOLLONESHOT, so an event is delivered to exactly one worker and the
// socket stays silent until that worker re-arms it: no connection is ever
// handled by two threads at once.

package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-poll/affinity"
	"github.com/momentics/hioload-poll/api"
	"github.com/momentics/hioload-poll/control"
	"github.com/momentics/hioload-poll/pool"
	"github.com/momentics/hioload-poll/protocol"
)

var (
	errPeerClosed = errors.New("connection closed by peer")
	errPollHangup = errors.New("EPOLLERR/EPOLLHUP")
)

// maxReadsPerEvent bounds back-to-back reads of one busy socket before the
// worker moves on to other ready descriptors.
const maxReadsPerEvent = 4

// Poll is the shared readiness context.
type Poll struct {
	epfd   int
	wakeFd int
	opts   Options

	acceptor *protocol.Acceptor
	logger   *slog.Logger
	metrics  *control.Metrics
	logLimit *rate.Limiter
	buffers  *pool.BytePool // outbound chunks, borrowed while bytes are pending

	sockets  sync.Map // fd -> *ListenSocket | *ClientSocket
	nSockets atomic.Int64
	closed   atomic.Bool
}

// NewPoll creates the epoll context and its wake-up eventfd.
func NewPoll(opts Options) (*Poll, error) {
	opts = opts.withDefaults()
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		_ = unix.Close(wakeFd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	p := &Poll{
		epfd:     epfd,
		wakeFd:   wakeFd,
		opts:     opts,
		acceptor: opts.Acceptor,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		logLimit: rate.NewLimiter(rate.Every(100*time.Millisecond), 20),
		buffers:  pool.NewBytePool(opts.WriteChunkSize),
	}
	return p, nil
}

// BufferStats reports the write buffer pool counters.
func (p *Poll) BufferStats() pool.Stats {
	return p.buffers.Stats()
}

func (p *Poll) interest(events uint32) uint32 {
	if p.opts.OneShot {
		events |= unix.EPOLLONESHOT
	}
	return events
}

// Add registers a socket for readable events and counts it.
func (p *Poll) Add(ps pollable) error {
	s := ps.base()
	s.poll = p
	if s.chunk == 0 {
		s.chunk = p.opts.WriteChunkSize
	}
	s.handOff()
	// the registry entry must exist before another worker can see an event
	p.sockets.Store(s.fd, ps)
	ev := unix.EpollEvent{Events: p.interest(unix.EPOLLIN), Fd: int32(s.fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, s.fd, &ev); err != nil {
		p.sockets.Delete(s.fd)
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	p.nSockets.Add(1)
	return nil
}

// Update re-arms a socket with the given interest set.
func (p *Poll) Update(ps pollable, events uint32) error {
	s := ps.base()
	s.handOff()
	ev := unix.EpollEvent{Events: p.interest(events), Fd: int32(s.fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, s.fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Remove unregisters a socket and decrements the count.
func (p *Poll) Remove(ps pollable) error {
	s := ps.base()
	if _, ok := p.sockets.LoadAndDelete(s.fd); !ok {
		return nil
	}
	p.nSockets.Add(-1)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, s.fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Count returns the number of registered sockets.
func (p *Poll) Count() int {
	return int(p.nSockets.Load())
}

// RunLoop serves events on n locked OS threads (n <= 0 means one per CPU)
// and returns once ctx is cancelled, or, with ExitWhenIdle, once no socket
// is left.
func (p *Poll) RunLoop(ctx context.Context, n int) error {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if !p.opts.OneShot && n > 1 {
		return fmt.Errorf("%w: level-triggered mode supports a single worker", api.ErrInvalidArgument)
	}
	if p.closed.Load() {
		return api.ErrSocketClosed
	}
	p.drainWake()
	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, p.wake)
	defer stop()
	p.logger.Info("reactor started", "workers", n, "one_shot", p.opts.OneShot)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error { return p.loop(gctx, i) })
	}
	err := g.Wait()
	p.logger.Info("reactor stopped", "sockets", p.Count())
	return err
}

// wake makes every blocked worker return from epoll_wait. The eventfd is
// never drained, so it stays readable for all of them.
func (p *Poll) wake() {
	var one = [8]byte{7: 1}
	if _, err := unix.Write(p.wakeFd, one[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		p.logger.Error("wake reactor", "error", err)
	}
}

// drainWake resets the eventfd left readable by a previous run.
func (p *Poll) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wakeFd, buf[:])
}

func (p *Poll) loop(ctx context.Context, worker int) error {
	runtime.LockOSThread()
	if p.opts.PinWorkers {
		// a pinned thread is never unlocked; it exits with this goroutine
		cpu := affinity.ForWorker(worker)
		if err := affinity.SetAffinity(cpu); err != nil {
			p.logger.Warn("failed to pin worker", "worker", worker, "cpu", cpu, "error", err)
		}
	} else {
		defer runtime.UnlockOSThread()
	}
	defer p.wake()

	events := make([]unix.EpollEvent, p.opts.MaxEvents)
	scratch := make([]byte, p.opts.ReceiveBufferSize)
	for {
		if ctx.Err() != nil || p.closed.Load() {
			return nil
		}
		if p.opts.ExitWhenIdle && p.nSockets.Load() == 0 {
			return nil
		}
		n, err := unix.EpollWait(p.epfd, events, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			p.metrics.WaitError()
			p.warn("epoll wait failed", "worker", worker, "error", err)
			continue
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == p.wakeFd {
				continue
			}
			v, ok := p.sockets.Load(fd)
			if !ok {
				continue
			}
			switch s := v.(type) {
			case *ListenSocket:
				p.serveListen(s, events[i].Events)
			case *ClientSocket:
				p.serveClient(s, events[i].Events, scratch)
			}
		}
	}
}

func (p *Poll) serveListen(ls *ListenSocket, ev uint32) {
	ls.claim()
	if !ls.Connected() || ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		p.logger.Error("listening socket failed", "fd", ls.fd, "events", ev)
		p.teardown(ls)
		return
	}
	if ev&unix.EPOLLIN != 0 {
		for {
			cs, err := ls.accept(p.opts.WriteChunkSize)
			if err != nil {
				if !isTransient(err) {
					p.warn("accept failed", "error", err)
				}
				break
			}
			if err := p.Add(cs); err != nil {
				p.warn("register client socket", "error", err)
				cs.destroy()
				continue
			}
			p.metrics.SocketOpened()
			p.logger.Debug("accepted connection", "socket_id", cs.ID(), "remote_addr", cs.RemoteAddr())
		}
	}
	if err := p.Update(ls, unix.EPOLLIN); err != nil {
		p.logger.Error("re-arm listening socket", "error", err)
		p.teardown(ls)
	}
}

func (p *Poll) serveClient(cs *ClientSocket, ev uint32, scratch []byte) {
	cs.claim()
	reason := control.ReasonLocal
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while serving connection", "socket_id", cs.ID(), "panic", r)
			cs.Disconnect()
			p.closeClient(cs, control.ReasonLocal)
		}
	}()

	cs.preDispatch()
	if !cs.Connected() {
		p.closeClient(cs, reason)
		return
	}
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		cs.abort(errPollHangup)
		reason = control.ReasonAborted
	} else {
		if ev&unix.EPOLLIN != 0 && !p.serveRead(cs, scratch) {
			cs.abort(errPeerClosed)
			reason = control.ReasonPeerClosed
		}
		if ev&unix.EPOLLOUT != 0 && cs.Connected() {
			cs.onWritable()
		}
	}
	if cs.Connected() {
		cs.postDispatch()
	}

	if !cs.Connected() {
		p.closeClient(cs, reason)
		return
	}
	var next uint32
	if cs.wantRead {
		next |= unix.EPOLLIN
	}
	if cs.wantsWrite() {
		next |= unix.EPOLLOUT
	}
	if err := p.Update(cs, next); err != nil {
		p.warn("re-arm client socket", "socket_id", cs.ID(), "error", err)
		cs.Disconnect()
		p.closeClient(cs, control.ReasonLocal)
	}
}

// serveRead reads into scratch and feeds the protocol. A read that filled
// scratch is repeated, up to maxReadsPerEvent times, while the socket stays
// connected. It returns false once the peer is gone.
func (p *Poll) serveRead(cs *ClientSocket, scratch []byte) bool {
	for i := 0; i < maxReadsPerEvent; i++ {
		n, ok := cs.receive(scratch)
		if n > 0 {
			p.metrics.AddBytesReceived(n)
			cs.onData(scratch[:n])
		}
		if !ok {
			return false
		}
		if !cs.dataPending || !cs.Connected() {
			break
		}
	}
	return true
}

func (p *Poll) closeClient(cs *ClientSocket, reason string) {
	if cs.destroyed.Load() {
		return
	}
	if err := p.Remove(cs); err != nil {
		p.logger.Debug("unregister client socket", "socket_id", cs.ID(), "error", err)
	}
	_ = unix.Shutdown(cs.fd, unix.SHUT_WR)
	if cs.destroy() {
		cs.release()
		p.metrics.SocketClosed(reason)
		p.logger.Debug("closing socket", "socket_id", cs.ID(), "reason", reason)
	}
}

func (p *Poll) teardown(ps pollable) {
	if cs, ok := ps.(*ClientSocket); ok {
		p.closeClient(cs, control.ReasonShutdown)
		return
	}
	if err := p.Remove(ps); err != nil {
		p.logger.Debug("unregister socket", "error", err)
	}
	ps.base().destroy()
}

// warn logs at warn level, throttled so a failing descriptor cannot flood
// the log.
func (p *Poll) warn(msg string, args ...any) {
	if p.logLimit.Allow() {
		p.logger.Warn(msg, args...)
	}
}

// Close wakes and stops every worker, then releases all sockets and the
// epoll context. Call it after RunLoop has returned.
func (p *Poll) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.wake()
	p.sockets.Range(func(_, v any) bool {
		p.teardown(v.(pollable))
		return true
	})
	err := unix.Close(p.epfd)
	if werr := unix.Close(p.wakeFd); err == nil {
		err = werr
	}
	return err
}
