// File: fake/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"sync"

	"github.com/momentics/hioload-poll/api"
)

// Event is one recorded dispatch.
type Event struct {
	Kind    api.WsEvent
	Message api.Message
}

// Dispatcher records every event it receives. OnEvent, when set, runs
// after recording, with the live session.
type Dispatcher struct {
	mu      sync.Mutex
	events  []Event
	OnEvent func(ev api.WsEvent, s api.Session)
}

// Dispatch records ev with a copy of the current message.
func (d *Dispatcher) Dispatch(ev api.WsEvent, s api.Session) {
	m := s.Message()
	m.Payload = append([]byte(nil), m.Payload...)
	d.mu.Lock()
	d.events = append(d.events, Event{Kind: ev, Message: m})
	fn := d.OnEvent
	d.mu.Unlock()
	if fn != nil {
		fn(ev, s)
	}
}

// Events returns the recorded events in order.
func (d *Dispatcher) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// Kinds returns just the event kinds, in order.
func (d *Dispatcher) Kinds() []api.WsEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]api.WsEvent, len(d.events))
	for i, e := range d.events {
		out[i] = e.Kind
	}
	return out
}
