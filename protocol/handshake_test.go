// File: protocol/handshake_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol_test

import (
	"bufio"
	"bytes"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/momentics/hioload-poll/api"
	"github.com/momentics/hioload-poll/protocol"
)

const upgradeRequest = "GET /chat HTTP/1.1\r\n" +
	"Host: server.example.com\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n" +
	"\r\n"

func TestAcceptKeyRFCExample(t *testing.T) {
	t.Parallel()

	if got := protocol.AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("AcceptKey = %q", got)
	}
}

func TestIsWebSocketUpgrade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"rfc request", upgradeRequest, true},
		{"lower case", "GET / HTTP/1.1\r\nupgrade:WebSocket\r\n\r\n", true},
		{"spaces", "GET / HTTP/1.1\r\nUPGRADE :  websocket  \r\n\r\n", true},
		{"plain get", "GET / HTTP/1.1\r\nHost: x\r\n\r\n", false},
		{"other protocol", "GET / HTTP/1.1\r\nUpgrade: h2c\r\n\r\n", false},
		{"incomplete", "GET / HTTP/1.1\r\nUpgrade: websocket\r\n", false},
		{"in body only", "POST / HTTP/1.1\r\nContent-Length: 30\r\n\r\n\r\nUpgrade: websocket\r\n", false},
	}
	for _, tc := range tests {
		if got := protocol.IsWebSocketUpgrade([]byte(tc.in)); got != tc.want {
			t.Errorf("%s: IsWebSocketUpgrade = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHeaderComplete(t *testing.T) {
	t.Parallel()

	full := []byte(upgradeRequest)
	for i := 0; i < len(full); i++ {
		if protocol.HeaderComplete(full[:i]) {
			t.Fatalf("HeaderComplete accepted a %d byte prefix", i)
		}
	}
	if !protocol.HeaderComplete(full) {
		t.Fatal("HeaderComplete rejected the full request")
	}
}

func TestReadUpgradeRequest(t *testing.T) {
	t.Parallel()

	buf := append([]byte(upgradeRequest), 0x81, 0x80)
	req, n, err := protocol.ReadUpgradeRequest(buf)
	if err != nil {
		t.Fatalf("ReadUpgradeRequest: %v", err)
	}
	if n != len(upgradeRequest) {
		t.Errorf("consumed %d bytes, want %d", n, len(upgradeRequest))
	}
	if req.URL.Path != "/chat" || req.Host != "server.example.com" {
		t.Errorf("request = %s %s", req.Host, req.URL.Path)
	}
}

func TestReadUpgradeRequestRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, from, to string
	}{
		{"post", "GET /chat", "POST /chat"},
		{"no key", "Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n", ""},
		{"old version", "Sec-WebSocket-Version: 13", "Sec-WebSocket-Version: 8"},
		{"no connection token", "Connection: Upgrade", "Connection: keep-alive"},
	}
	for _, tc := range tests {
		in := strings.Replace(upgradeRequest, tc.from, tc.to, 1)
		if _, _, err := protocol.ReadUpgradeRequest([]byte(in)); !errors.Is(err, api.ErrBadHandshake) {
			t.Errorf("%s: error = %v, want ErrBadHandshake", tc.name, err)
		}
	}
}

func TestUpgradeResponse(t *testing.T) {
	t.Parallel()

	req, _, err := protocol.ReadUpgradeRequest([]byte(upgradeRequest))
	if err != nil {
		t.Fatalf("ReadUpgradeRequest: %v", err)
	}
	raw := protocol.UpgradeResponse(req)
	if !bytes.HasPrefix(raw, []byte("HTTP/1.1 101 Switching Protocols\r\n")) {
		t.Fatalf("status line: %q", raw)
	}
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(raw)), req)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if got := resp.Header.Get("Sec-WebSocket-Accept"); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Errorf("accept = %q", got)
	}
	if !strings.EqualFold(resp.Header.Get("Upgrade"), "websocket") || !strings.EqualFold(resp.Header.Get("Connection"), "upgrade") {
		t.Errorf("headers = %v", resp.Header)
	}
	if resp.Header.Get("Content-Length") != "" {
		t.Errorf("101 response carries Content-Length")
	}
}

func TestHTTPResponseBytes(t *testing.T) {
	t.Parallel()

	r := protocol.NewHTTPResponse().SetStatus(http.StatusNotFound).SetHeader("X-Test", "1")
	_, _ = r.WriteString("nope")
	want := "HTTP/1.1 404 Not Found\r\nX-Test: 1\r\nContent-Length: 4\r\n\r\nnope"
	if got := string(r.Bytes()); got != want {
		t.Fatalf("Bytes = %q, want %q", got, want)
	}

	explicit := protocol.NewHTTPResponse().SetHeader("Content-Length", "0")
	if got := strings.Count(string(explicit.Bytes()), "Content-Length"); got != 1 {
		t.Fatalf("Content-Length written %d times", got)
	}
	if !explicit.HeaderSet("content-length") || explicit.Status() != http.StatusOK {
		t.Fatal("explicit header or default status lost")
	}
}
