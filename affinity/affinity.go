// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_stub.go) guarded by build tags.

package affinity

import "runtime"

// SetAffinity pins the current OS thread to a given logical CPU. The caller
// must hold runtime.LockOSThread. On unsupported platforms returns an error.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// ForWorker maps a worker index onto a logical CPU, round robin.
func ForWorker(worker int) int {
	n := runtime.NumCPU()
	if n <= 0 {
		return 0
	}
	return worker % n
}
