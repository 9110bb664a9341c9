// File: protocol/formatter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package protocol implements outbound frame formatting.

package protocol

import "github.com/momentics/hioload-poll/api"

// OutFrame is one fully serialized outbound frame and its write progress.
type OutFrame struct {
	Opcode api.Opcode
	Data   []byte
	offset int
}

// Size returns the serialized frame length.
func (f *OutFrame) Size() int { return len(f.Data) }

// Remaining returns the bytes not yet handed to the socket.
func (f *OutFrame) Remaining() []byte { return f.Data[f.offset:] }

// Advance records n more bytes as written.
func (f *OutFrame) Advance(n int) {
	f.offset += n
	if f.offset > len(f.Data) {
		panic("protocol: frame write offset beyond frame size")
	}
}

// Done reports whether the whole frame has been written.
func (f *OutFrame) Done() bool { return f.offset == len(f.Data) }

// rawFrame wraps bytes that bypass framing, such as the upgrade response.
func rawFrame(b []byte) *OutFrame {
	return &OutFrame{Opcode: api.OpcodeContinuation, Data: b}
}

// FormatFrames splits payload into frames carrying at most maxPayload bytes.
// The first frame carries op, later ones are continuations, and only the
// last has FIN set. Server frames are never masked. An empty payload yields
// a single frame.
func FormatFrames(op api.Opcode, payload []byte, maxPayload int) []*OutFrame {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayloadLength
	}
	count := (len(payload) + maxPayload - 1) / maxPayload
	if count == 0 {
		count = 1
	}
	frames := make([]*OutFrame, 0, count)

	frameOp := op
	for {
		chunk := payload
		last := len(chunk) <= maxPayload
		if !last {
			chunk = payload[:maxPayload]
		}
		h := Header{
			Fin:        last,
			Opcode:     frameOp,
			PayloadLen: uint64(len(chunk)),
		}
		data := make([]byte, 0, h.HeaderLen()+len(chunk))
		data = AppendHeader(data, h)
		data = append(data, chunk...)
		frames = append(frames, &OutFrame{Opcode: frameOp, Data: data})

		if last {
			return frames
		}
		payload = payload[maxPayload:]
		frameOp = api.OpcodeContinuation
	}
}
