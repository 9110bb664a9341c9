// File: protocol/parser.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package protocol implements the incremental inbound frame parser.
//
// Parser is a two-state machine (awaiting header / accumulating payload)
// fed with whatever a single non-blocking read returned. It never performs
// I/O and never blocks; a short buffer is a suspension point, not an error.

package protocol

import (
	"fmt"

	"github.com/momentics/hioload-poll/api"
)

// maxPrealloc caps the payload capacity reserved from an untrusted length
// field before the bytes have actually arrived.
const maxPrealloc = 64 * 1024

// frameState tracks one partially received frame.
type frameState struct {
	hdr        Header
	readOffset uint64
	payload    []byte
}

// Parser decodes client-to-server frames and reassembles fragmented messages.
type Parser struct {
	// RequireMask rejects unmasked frames with api.ErrMaskMissing.
	RequireMask bool
	// MaxMessageSize bounds a reassembled message; 0 disables the check.
	MaxMessageSize uint64

	buf []byte // received, not yet consumed bytes
	off int    // read position in buf

	frame *frameState // nil while awaiting a new header

	msg        []byte     // payload of the message being reassembled
	msgOpcode  api.Opcode // opcode of the first fragment
	fragmented bool       // a fin=0 data frame has been seen
}

// NewParser returns a server-side parser enforcing client masking.
func NewParser(maxMessageSize uint64) *Parser {
	return &Parser{RequireMask: true, MaxMessageSize: maxMessageSize}
}

// Feed appends freshly received bytes.
func (p *Parser) Feed(data []byte) {
	if p.off == len(p.buf) {
		p.buf = p.buf[:0]
		p.off = 0
	} else if p.off > 0 && p.off >= len(p.buf)/2 {
		n := copy(p.buf, p.buf[p.off:])
		p.buf = p.buf[:n]
		p.off = 0
	}
	p.buf = append(p.buf, data...)
}

// Buffered returns the number of fed bytes not yet consumed.
func (p *Parser) Buffered() int {
	return len(p.buf) - p.off
}

// InFrame reports whether a frame header has been consumed and its payload
// is still incomplete.
func (p *Parser) InFrame() bool {
	return p.frame != nil
}

// Next consumes buffered bytes and returns the next complete message.
// It returns (nil, nil) when more data is needed. Control frames are
// returned as soon as they complete, even between fragments of a data
// message. Any error means the connection should be closed; the parser
// state is undefined afterwards.
func (p *Parser) Next() (*api.Message, error) {
	for {
		if p.frame == nil {
			if p.Buffered() < 2 {
				return nil, nil
			}
			if p.RequireMask && p.buf[p.off+1]&MaskBit == 0 {
				return nil, api.ErrMaskMissing
			}
			h, n, ok := DecodeHeader(p.buf[p.off:])
			if !ok {
				return nil, nil
			}
			if err := p.validate(h); err != nil {
				return nil, err
			}
			p.off += n
			p.frame = &frameState{
				hdr:     h,
				payload: make([]byte, 0, min(h.PayloadLen, maxPrealloc)),
			}
		}

		f := p.frame
		need := f.hdr.PayloadLen - f.readOffset
		take := min(need, uint64(p.Buffered()))
		f.payload = append(f.payload, p.buf[p.off:p.off+int(take)]...)
		p.off += int(take)
		f.readOffset += take
		if f.readOffset < f.hdr.PayloadLen {
			return nil, nil
		}

		if f.hdr.Masked {
			Mask(f.hdr.MaskKey, 0, f.payload)
		}
		p.frame = nil
		if msg := p.complete(f); msg != nil {
			return msg, nil
		}
	}
}

// validate applies the RFC 6455 rules that can be checked on a header.
func (p *Parser) validate(h Header) error {
	op := h.Opcode
	switch {
	case h.Rsv1 || h.Rsv2 || h.Rsv3:
		return fmt.Errorf("%w: reserved bits set without extension", api.ErrProtocolViolation)
	case h.PayloadLen>>63 != 0:
		return fmt.Errorf("%w: payload length has most significant bit set", api.ErrProtocolViolation)
	case op.IsControl() && !h.Fin:
		return fmt.Errorf("%w: fragmented control frame", api.ErrProtocolViolation)
	case op.IsControl() && h.PayloadLen > MaxControlPayloadLen:
		return fmt.Errorf("%w: control frame payload %d > %d", api.ErrProtocolViolation, h.PayloadLen, MaxControlPayloadLen)
	case op == api.OpcodeContinuation && !p.fragmented:
		return fmt.Errorf("%w: continuation without initial frame", api.ErrProtocolViolation)
	case !op.IsControl() && op != api.OpcodeContinuation && p.fragmented:
		return fmt.Errorf("%w: new data frame inside fragmented message", api.ErrProtocolViolation)
	}
	if p.MaxMessageSize > 0 {
		total := h.PayloadLen
		if op == api.OpcodeContinuation {
			total += uint64(len(p.msg))
		}
		if total > p.MaxMessageSize {
			return fmt.Errorf("%w: %d bytes", api.ErrMessageTooLarge, total)
		}
	}
	return nil
}

// complete folds a finished frame into the message being reassembled and
// returns the message once a final frame closes it.
func (p *Parser) complete(f *frameState) *api.Message {
	op := f.hdr.Opcode
	if op.IsControl() {
		return &api.Message{Opcode: op, Payload: f.payload}
	}
	if op == api.OpcodeContinuation {
		p.msg = append(p.msg, f.payload...)
	} else {
		p.msgOpcode = op
		p.msg = f.payload
	}
	if !f.hdr.Fin {
		p.fragmented = true
		return nil
	}
	msg := &api.Message{Opcode: p.msgOpcode, Payload: p.msg}
	p.msg = nil
	p.fragmented = false
	return msg
}

// Reset drops all buffered bytes and partial frame/message state.
func (p *Parser) Reset() {
	p.buf = nil
	p.off = 0
	p.frame = nil
	p.msg = nil
	p.fragmented = false
}
