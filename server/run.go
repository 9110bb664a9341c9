// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
)

// Run serves connections on the configured number of workers and blocks
// until ctx is cancelled (or, with ExitWhenIdle, until nothing is left to
// serve). The server is closed when Run returns.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	err := s.poll.RunLoop(ctx, s.cfg.Workers)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}
