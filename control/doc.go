// File: control/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package control
//
// Configuration, hot reload, runtime metrics and debug introspection for
// hioload-poll.
//
// Provides:
//   - Config loading from file and environment (viper) with validation
//   - File watching (fsnotify) feeding ConfigStore reload hooks
//   - Prometheus collectors for the reactor and protocol layer
//   - Named debug probes exported as JSON
package control
