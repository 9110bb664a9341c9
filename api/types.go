// File: api/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared API-level type declarations: wire opcodes and decoded messages.

package api

import "fmt"

// Opcode is the 4-bit WebSocket frame operation code.
type Opcode byte

// RFC 6455 section 11.8.
const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

// IsControl reports whether op belongs to the control range (0x8-0xF).
func (op Opcode) IsControl() bool {
	return op&0x8 != 0
}

func (op Opcode) String() string {
	switch op {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("opcode(0x%X)", byte(op))
	}
}

// Message is one reassembled WebSocket message handed to a Dispatcher.
// Payload is only valid for the duration of the Dispatch call.
type Message struct {
	Opcode  Opcode
	Payload []byte
}

// Len returns the payload length.
func (m Message) Len() int {
	return len(m.Payload)
}
