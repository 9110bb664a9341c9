// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/momentics/hioload-poll/api"
	"github.com/momentics/hioload-poll/control"
	"github.com/momentics/hioload-poll/protocol"
	"github.com/momentics/hioload-poll/reactor"
)

var ErrAlreadyRunning = errors.New("server already running")

// New validates cfg, creates the reactor and binds the listening socket.
// d receives every WebSocket event.
func New(cfg control.Config, d api.Dispatcher, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrInvalidArgument, err)
	}
	s := &Server{cfg: cfg, dispatcher: d}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	poll, err := reactor.NewPoll(PollOptions(cfg, s.acceptor(), s.logger, s.metrics))
	if err != nil {
		return nil, err
	}
	ln, err := reactor.Listen(cfg.ListenAddr, cfg.Backlog)
	if err != nil {
		_ = poll.Close()
		return nil, err
	}
	if err := poll.Add(ln); err != nil {
		ln.Close()
		_ = poll.Close()
		return nil, err
	}
	s.poll = poll
	s.listener = ln

	if s.probes != nil {
		s.probes.RegisterProbe("sockets", func() any { return s.poll.Count() })
		s.probes.RegisterProbe("listen_addr", func() any { return s.Addr().String() })
		s.probes.RegisterProbe("running", func() any { return s.running.Load() })
		s.probes.RegisterProbe("write_buffers", func() any { return s.poll.BufferStats() })
	}
	s.logger.Info("listening", "addr", s.Addr().String())
	return s, nil
}

// PollOptions maps the configuration onto reactor options.
func PollOptions(cfg control.Config, acc *protocol.Acceptor, logger *slog.Logger, m *control.Metrics) reactor.Options {
	return reactor.Options{
		OneShot:           cfg.OneShot,
		MaxEvents:         cfg.MaxEvents,
		ReceiveBufferSize: cfg.ReceiveBufferSize,
		WriteChunkSize:    cfg.WriteChunkSize,
		ExitWhenIdle:      cfg.ExitWhenIdle,
		PinWorkers:        cfg.PinWorkers,
		Acceptor:          acc,
		Logger:            logger,
		Metrics:           m,
	}
}

// SessionOptions maps the configuration onto per-session framing limits.
func SessionOptions(cfg control.Config) protocol.SessionOptions {
	return protocol.SessionOptions{
		MaxPayloadLength: cfg.MaxPayloadLength,
		MaxMessageSize:   cfg.MaxMessageSize,
	}
}

func (s *Server) acceptor() *protocol.Acceptor {
	return &protocol.Acceptor{
		Dispatcher:       s.dispatcher,
		HTTPHandler:      s.plain,
		Session:          SessionOptions(s.cfg),
		MaxHandshakeSize: s.cfg.MaxHandshakeSize,
		Logger:           s.logger,
		Metrics:          s.metrics,
	}
}

// Addr returns the bound listening address.
func (s *Server) Addr() *net.TCPAddr {
	return s.listener.Addr()
}

// Metrics returns the attached collectors, possibly nil.
func (s *Server) Metrics() *control.Metrics {
	return s.metrics
}

// Config returns the configuration the server was built with.
func (s *Server) Config() control.Config {
	return s.cfg
}

// Close releases the reactor, the listener and every connection. It must
// not race with a running Run; cancel Run's context instead.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.poll.Close()
	})
	return s.closeErr
}
