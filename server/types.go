// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package server wires config, logging, metrics, the listening socket and
// the epoll reactor into a runnable WebSocket server.

package server

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-poll/api"
	"github.com/momentics/hioload-poll/control"
	"github.com/momentics/hioload-poll/protocol"
	"github.com/momentics/hioload-poll/reactor"
)

// Server is the facade encapsulating listener, reactor and control.
type Server struct {
	cfg        control.Config
	dispatcher api.Dispatcher
	plain      protocol.HTTPHandler

	logger  *slog.Logger
	metrics *control.Metrics
	probes  api.Debug

	poll     *reactor.Poll
	listener *reactor.ListenSocket

	running   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}
