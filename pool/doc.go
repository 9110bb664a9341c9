// File: pool/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package pool
//
// Buffer recycling for the reactor. Outbound socket buffers are borrowed
// while a connection has unsent bytes and returned once they drain, so idle
// connections hold no write buffer at all.
package pool
