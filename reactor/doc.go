// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor provides the epoll-based I/O reactor: one shared
// readiness context served by a fixed pool of locked OS threads, with
// one-shot re-arming as the only per-connection serialization.
//
// Linux only; other platforms get a stub whose constructors return
// api.ErrNotSupported.
package reactor
