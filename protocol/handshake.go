// File: protocol/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Upgrade detection and the server side of the RFC 6455 opening handshake:
// request parsing, header validation and Sec-WebSocket-Accept computation.

package protocol

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/momentics/hioload-poll/api"
)

const (
	WebSocketGUID            = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	MaxHandshakeHeadersSize  = 8192
	HeaderConnection         = "Connection"
	HeaderUpgrade            = "Upgrade"
	HeaderSecWebSocketKey    = "Sec-WebSocket-Key"
	HeaderSecWebSocketVer    = "Sec-WebSocket-Version"
	HeaderSecWebSocketAccept = "Sec-WebSocket-Accept"
	RequiredWebSocketVersion = "13"
)

var (
	headerTerminator = []byte("\r\n\r\n")
	upgradeFieldRe   = regexp.MustCompile(`(?i)\r\nUpgrade\s*:\s*websocket\s*\r\n`)
)

// HeaderComplete reports whether buf holds a full HTTP header block.
func HeaderComplete(buf []byte) bool {
	return bytes.Contains(buf, headerTerminator)
}

// IsWebSocketUpgrade reports whether the header block in buf carries an
// "Upgrade: websocket" field, matched case-insensitively.
func IsWebSocketUpgrade(buf []byte) bool {
	end := bytes.Index(buf, headerTerminator)
	if end < 0 {
		return false
	}
	return upgradeFieldRe.Match(buf[:end+len(headerTerminator)])
}

// ReadRequest parses the HTTP request head at the start of buf and returns
// it with the number of bytes the head occupies.
func ReadRequest(buf []byte) (*http.Request, int, error) {
	end := bytes.Index(buf, headerTerminator)
	if end < 0 {
		return nil, 0, fmt.Errorf("%w: incomplete header block", api.ErrBadHandshake)
	}
	n := end + len(headerTerminator)
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(buf[:n])))
	if err != nil {
		return nil, 0, fmt.Errorf("handshake read request: %w", err)
	}
	return req, n, nil
}

// ReadUpgradeRequest parses and validates a WebSocket upgrade request.
func ReadUpgradeRequest(buf []byte) (*http.Request, int, error) {
	req, n, err := ReadRequest(buf)
	if err != nil {
		return nil, 0, err
	}
	if req.Method != http.MethodGet {
		return nil, 0, fmt.Errorf("%w: method %s", api.ErrBadHandshake, req.Method)
	}
	if !headerContainsToken(req.Header, HeaderConnection, "upgrade") ||
		!headerContainsToken(req.Header, HeaderUpgrade, "websocket") {
		return nil, 0, fmt.Errorf("%w: missing upgrade tokens", api.ErrBadHandshake)
	}
	if req.Header.Get(HeaderSecWebSocketVer) != RequiredWebSocketVersion {
		return nil, 0, fmt.Errorf("%w: unsupported version %q", api.ErrBadHandshake, req.Header.Get(HeaderSecWebSocketVer))
	}
	if req.Header.Get(HeaderSecWebSocketKey) == "" {
		return nil, 0, fmt.Errorf("%w: missing %s", api.ErrBadHandshake, HeaderSecWebSocketKey)
	}
	return req, n, nil
}

// AcceptKey computes the Sec-WebSocket-Accept value for a client key.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(strings.TrimSpace(key) + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// UpgradeResponse serializes the 101 Switching Protocols reply for req.
func UpgradeResponse(req *http.Request) []byte {
	return NewHTTPResponse().
		SetStatus(http.StatusSwitchingProtocols).
		SetHeader(HeaderUpgrade, "websocket").
		SetHeader(HeaderConnection, "Upgrade").
		SetHeader(HeaderSecWebSocketAccept, AcceptKey(req.Header.Get(HeaderSecWebSocketKey))).
		Bytes()
}

// headerContainsToken reports whether the comma-separated header contains token.
func headerContainsToken(h http.Header, headerName, token string) bool {
	return httpguts.HeaderValuesContainsToken(h.Values(headerName), token)
}
