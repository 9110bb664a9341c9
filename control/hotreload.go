// File: control/hotreload.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Manages hot-reload hooks for config changes.
// TriggerSync gives tests deterministic notification.

package control

import "sync"

// ReloadHooks is a registry of components interested in config changes.
type ReloadHooks struct {
	mu    sync.Mutex
	hooks []func(Config)
}

// NewReloadHooks returns an empty registry.
func NewReloadHooks() *ReloadHooks {
	return &ReloadHooks{}
}

// Register adds a new component reload listener.
func (r *ReloadHooks) Register(fn func(Config)) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Trigger dispatches all hooks asynchronously.
func (r *ReloadHooks) Trigger(cfg Config) {
	for _, fn := range r.snapshot() {
		go fn(cfg)
	}
}

// TriggerSync invokes all hooks synchronously.
func (r *ReloadHooks) TriggerSync(cfg Config) {
	for _, fn := range r.snapshot() {
		fn(cfg)
	}
}

func (r *ReloadHooks) snapshot() []func(Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]func(Config), len(r.hooks))
	copy(out, r.hooks)
	return out
}
