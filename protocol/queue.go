// File: protocol/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FIFO queues for per-connection frames and messages, backed by the
// eapache ring-buffer queue. Neither type is safe for concurrent use; a
// connection's queues are only touched by the worker holding its event slot.

package protocol

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-poll/api"
)

// FrameQueue holds serialized outbound frames in submission order.
type FrameQueue struct {
	q *queue.Queue
}

// NewFrameQueue returns an empty queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{q: queue.New()}
}

// Push appends f.
func (fq *FrameQueue) Push(f *OutFrame) { fq.q.Add(f) }

// Len returns the number of queued frames.
func (fq *FrameQueue) Len() int { return fq.q.Length() }

// Front returns the head frame, or nil when empty.
func (fq *FrameQueue) Front() *OutFrame {
	if fq.q.Length() == 0 {
		return nil
	}
	return fq.q.Peek().(*OutFrame)
}

// Pop removes and returns the head frame, or nil when empty.
func (fq *FrameQueue) Pop() *OutFrame {
	if fq.q.Length() == 0 {
		return nil
	}
	return fq.q.Remove().(*OutFrame)
}

// Clear drops every queued frame.
func (fq *FrameQueue) Clear() {
	for fq.q.Length() > 0 {
		fq.q.Remove()
	}
}

// MessageQueue holds whole messages waiting for dispatch or framing.
type MessageQueue struct {
	q *queue.Queue
}

// NewMessageQueue returns an empty queue.
func NewMessageQueue() *MessageQueue {
	return &MessageQueue{q: queue.New()}
}

// Push appends m.
func (mq *MessageQueue) Push(m api.Message) { mq.q.Add(m) }

// Len returns the number of queued messages.
func (mq *MessageQueue) Len() int { return mq.q.Length() }

// Pop removes and returns the head message.
func (mq *MessageQueue) Pop() (api.Message, bool) {
	if mq.q.Length() == 0 {
		return api.Message{}, false
	}
	return mq.q.Remove().(api.Message), true
}

// Clear drops every queued message.
func (mq *MessageQueue) Clear() {
	for mq.q.Length() > 0 {
		mq.q.Remove()
	}
}
