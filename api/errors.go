// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types for hioload-poll.

package api

import "errors"

// Common errors used across the library.
var (
	ErrSocketClosed      = errors.New("socket is closed")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotSupported      = errors.New("operation not supported")
	ErrMaskMissing       = errors.New("inbound frame is not masked")
	ErrProtocolViolation = errors.New("websocket protocol violation")
	ErrMessageTooLarge   = errors.New("message exceeds maximum size")
	ErrBadHandshake      = errors.New("invalid websocket upgrade request")
)
