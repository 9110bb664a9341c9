//go:build linux

// File: reactor/errors_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Errno classification for socket calls.

package reactor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isTransient reports would-block and interrupted calls: not errors, the
// operation is simply retried on a later readiness event.
func isTransient(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}

// isPeerGone reports errors meaning the remote end is no longer reachable.
func isPeerGone(err error) bool {
	switch {
	case errors.Is(err, unix.ECONNRESET),
		errors.Is(err, unix.ECONNABORTED),
		errors.Is(err, unix.ETIMEDOUT),
		errors.Is(err, unix.EHOSTUNREACH),
		errors.Is(err, unix.ENETUNREACH),
		errors.Is(err, unix.ESHUTDOWN),
		errors.Is(err, unix.EPIPE):
		return true
	}
	return false
}
