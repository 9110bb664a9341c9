// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package server defines functional options for the Server facade.

package server

import (
	"log/slog"

	"github.com/momentics/hioload-poll/api"
	"github.com/momentics/hioload-poll/control"
	"github.com/momentics/hioload-poll/protocol"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the structured logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics attaches Prometheus collectors. Without it nothing is recorded.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHTTPHandler answers plain (non-upgrade) HTTP requests. The default
// replies 426 Upgrade Required.
func WithHTTPHandler(h protocol.HTTPHandler) Option {
	return func(s *Server) {
		s.plain = h
	}
}

// WithProbes registers the server's debug probes on p.
func WithProbes(p api.Debug) Option {
	return func(s *Server) {
		s.probes = p
	}
}
