//go:build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"context"
	"fmt"
	"net"
	"runtime"

	"github.com/momentics/hioload-poll/api"
	"github.com/momentics/hioload-poll/pool"
)

var errPlatform = fmt.Errorf("%w: epoll reactor on %s", api.ErrNotSupported, runtime.GOOS)

// Poll is unavailable on this platform.
type Poll struct{}

// NewPoll returns api.ErrNotSupported.
func NewPoll(Options) (*Poll, error) { return nil, errPlatform }

// Add returns api.ErrNotSupported.
func (p *Poll) Add(*ListenSocket) error { return errPlatform }

// RunLoop returns api.ErrNotSupported.
func (p *Poll) RunLoop(context.Context, int) error { return errPlatform }

// BufferStats returns zero counters.
func (p *Poll) BufferStats() pool.Stats { return pool.Stats{} }

// Count returns zero.
func (p *Poll) Count() int { return 0 }

// Close is a no-op.
func (p *Poll) Close() error { return nil }

// ListenSocket is unavailable on this platform.
type ListenSocket struct{}

// Listen returns api.ErrNotSupported.
func Listen(string, int) (*ListenSocket, error) { return nil, errPlatform }

// Addr returns nil.
func (l *ListenSocket) Addr() *net.TCPAddr { return nil }

// Close is a no-op.
func (l *ListenSocket) Close() {}
