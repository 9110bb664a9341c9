// File: protocol/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket frame header encoding/decoding and masking.
//
// Headers are encoded and decoded bit by bit from byte arrays with an
// explicit big-endian length layout; nothing depends on struct layout.

package protocol

import (
	"encoding/binary"
	"math"

	"github.com/momentics/hioload-poll/api"
)

// Header is a decoded WebSocket frame header.
type Header struct {
	Fin        bool
	Rsv1       bool
	Rsv2       bool
	Rsv3       bool
	Opcode     api.Opcode
	Masked     bool
	PayloadLen uint64
	MaskKey    [4]byte
}

// HeaderLen returns the encoded size of h including the mask key.
func (h Header) HeaderLen() int {
	n := 2
	switch {
	case h.PayloadLen > math.MaxUint16:
		n += 8
	case h.PayloadLen > MaxControlPayloadLen:
		n += 2
	}
	if h.Masked {
		n += 4
	}
	return n
}

// DecodeHeader parses a frame header from the start of b.
// It returns the header, the number of bytes it occupies (including the mask
// key) and false when b does not yet hold the complete header.
func DecodeHeader(b []byte) (Header, int, bool) {
	var h Header
	if len(b) < 2 {
		return h, 0, false
	}
	h.Fin = b[0]&FinBit != 0
	h.Rsv1 = b[0]&Rsv1Bit != 0
	h.Rsv2 = b[0]&Rsv2Bit != 0
	h.Rsv3 = b[0]&Rsv3Bit != 0
	h.Opcode = api.Opcode(b[0] & OpMask)
	h.Masked = b[1]&MaskBit != 0

	n := 2
	switch l := b[1] & LenMask; l {
	case len16Marker:
		if len(b) < n+2 {
			return h, 0, false
		}
		h.PayloadLen = uint64(binary.BigEndian.Uint16(b[n:]))
		n += 2
	case len64Marker:
		if len(b) < n+8 {
			return h, 0, false
		}
		h.PayloadLen = binary.BigEndian.Uint64(b[n:])
		n += 8
	default:
		h.PayloadLen = uint64(l)
	}

	if h.Masked {
		if len(b) < n+4 {
			return h, 0, false
		}
		copy(h.MaskKey[:], b[n:n+4])
		n += 4
	}
	return h, n, true
}

// AppendHeader encodes h onto dst. The length field is chosen from
// PayloadLen: 7-bit up to 125, 16-bit up to 65535, 64-bit otherwise.
func AppendHeader(dst []byte, h Header) []byte {
	var b0 byte
	if h.Fin {
		b0 |= FinBit
	}
	if h.Rsv1 {
		b0 |= Rsv1Bit
	}
	if h.Rsv2 {
		b0 |= Rsv2Bit
	}
	if h.Rsv3 {
		b0 |= Rsv3Bit
	}
	b0 |= byte(h.Opcode) & OpMask

	var b1 byte
	if h.Masked {
		b1 = MaskBit
	}

	switch {
	case h.PayloadLen <= MaxControlPayloadLen:
		dst = append(dst, b0, b1|byte(h.PayloadLen))
	case h.PayloadLen <= math.MaxUint16:
		dst = append(dst, b0, b1|len16Marker)
		dst = binary.BigEndian.AppendUint16(dst, uint16(h.PayloadLen))
	default:
		dst = append(dst, b0, b1|len64Marker)
		dst = binary.BigEndian.AppendUint64(dst, h.PayloadLen)
	}

	if h.Masked {
		dst = append(dst, h.MaskKey[:]...)
	}
	return dst
}

// AppendFrame encodes a complete frame. When mask is non-nil the payload is
// masked with it on the way out, as a client would send it; payload itself
// is left untouched.
func AppendFrame(dst []byte, fin bool, op api.Opcode, payload []byte, mask *[4]byte) []byte {
	h := Header{
		Fin:        fin,
		Opcode:     op,
		PayloadLen: uint64(len(payload)),
	}
	if mask != nil {
		h.Masked = true
		h.MaskKey = *mask
	}
	dst = AppendHeader(dst, h)
	start := len(dst)
	dst = append(dst, payload...)
	if mask != nil {
		Mask(*mask, 0, dst[start:])
	}
	return dst
}

// Mask XORs b in place with key, starting at key position pos, and returns
// the key position following b. Applying it twice restores the input.
func Mask(key [4]byte, pos int, b []byte) int {
	for i := range b {
		b[i] ^= key[(pos+i)&3]
	}
	return (pos + len(b)) & 3
}
