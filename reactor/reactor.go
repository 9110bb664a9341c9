// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral reactor options.

package reactor

import (
	"log/slog"

	"github.com/momentics/hioload-poll/control"
	"github.com/momentics/hioload-poll/protocol"
)

// Defaults for Options.
const (
	DefaultMaxEvents         = 1024
	DefaultReceiveBufferSize = 512 * 1024
	DefaultWriteChunkSize    = 512 * 1024
)

// Options configures a Poll.
type Options struct {
	// OneShot arms every socket with EPOLLONESHOT. Required for more than
	// one worker.
	OneShot bool
	// MaxEvents is the size of each worker's event array.
	MaxEvents int
	// ReceiveBufferSize is the size of each worker's scratch read buffer.
	ReceiveBufferSize int
	// WriteChunkSize is the outbound buffer size that triggers a flush.
	WriteChunkSize int
	// ExitWhenIdle stops RunLoop once no socket is registered.
	ExitWhenIdle bool
	// PinWorkers pins worker i to CPU i mod NumCPU.
	PinWorkers bool

	// Acceptor turns accepted connections into protocol conns.
	Acceptor *protocol.Acceptor
	Logger   *slog.Logger
	Metrics  *control.Metrics
}

// DefaultOptions returns one-shot options with default sizes.
func DefaultOptions() Options {
	return Options{
		OneShot:           true,
		MaxEvents:         DefaultMaxEvents,
		ReceiveBufferSize: DefaultReceiveBufferSize,
		WriteChunkSize:    DefaultWriteChunkSize,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxEvents <= 0 {
		o.MaxEvents = DefaultMaxEvents
	}
	if o.ReceiveBufferSize <= 0 {
		o.ReceiveBufferSize = DefaultReceiveBufferSize
	}
	if o.WriteChunkSize <= 0 {
		o.WriteChunkSize = DefaultWriteChunkSize
	}
	if o.Acceptor == nil {
		o.Acceptor = &protocol.Acceptor{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
