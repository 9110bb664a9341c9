// File: protocol/constants.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket wire protocol constants

package protocol

const (
	// First header byte.
	FinBit  = 0x80
	Rsv1Bit = 0x40
	Rsv2Bit = 0x20
	Rsv3Bit = 0x10
	OpMask  = 0x0F

	// Second header byte.
	MaskBit = 0x80
	LenMask = 0x7F

	// 7-bit length markers for extended payload lengths.
	len16Marker = 126
	len64Marker = 127

	// Frame limit settings
	MaxControlPayloadLen = 125

	// DefaultMaxPayloadLength is the largest payload put in a single
	// outbound frame before the message is split into continuations.
	DefaultMaxPayloadLength = 64 * 1024

	// DefaultMaxMessageSize bounds a reassembled inbound message.
	DefaultMaxMessageSize = 16 << 20

	// Close status codes sent by the server (RFC 6455 section 7.4.1).
	CloseNormalClosure = 1000
	CloseProtocolError = 1002
	CloseMessageTooBig = 1009
)
