// File: protocol/helpers_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol_test

import (
	"bytes"
	"testing"

	"github.com/gobwas/ws"

	"github.com/momentics/hioload-poll/api"
	"github.com/momentics/hioload-poll/protocol"
)

var testKey = [4]byte{0x11, 0x22, 0x33, 0x44}

// clientFrame encodes a masked frame the way a browser would, using gobwas
// so the parser is checked against an independent encoder.
func clientFrame(t testing.TB, fin bool, op api.Opcode, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	h := ws.Header{Fin: fin, OpCode: ws.OpCode(op), Masked: true, Mask: testKey, Length: int64(len(payload))}
	if err := ws.WriteHeader(&buf, h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	masked := append([]byte(nil), payload...)
	ws.Cipher(masked, testKey, 0)
	buf.Write(masked)
	return buf.Bytes()
}

// drain collects every message the parser yields until it needs more input.
func drain(t testing.TB, p *protocol.Parser) []api.Message {
	t.Helper()
	var out []api.Message
	for {
		m, err := p.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if m == nil {
			return out
		}
		out = append(out, *m)
	}
}

// reMask turns a server frame into the equivalent client frame.
func reMask(t testing.TB, frame []byte) []byte {
	t.Helper()
	h, n, ok := protocol.DecodeHeader(frame)
	if !ok {
		t.Fatalf("incomplete server frame")
	}
	if h.Masked {
		t.Fatalf("server frame is masked")
	}
	return protocol.AppendFrame(nil, h.Fin, h.Opcode, frame[n:], &testKey)
}
