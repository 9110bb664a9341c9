// File: protocol/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Minimal HTTP/1.1 response builder used for the upgrade reply and the
// plain-request path.

package protocol

import (
	"bytes"
	"net/http"
	"sort"
	"strconv"
)

// HTTPResponse accumulates a status, headers and body.
type HTTPResponse struct {
	status        int
	header        http.Header
	body          bytes.Buffer
	contentLength int // -1 until set explicitly
}

// NewHTTPResponse returns a 200 OK response with no headers.
func NewHTTPResponse() *HTTPResponse {
	return &HTTPResponse{
		status:        http.StatusOK,
		header:        make(http.Header),
		contentLength: -1,
	}
}

// SetStatus sets the status code.
func (r *HTTPResponse) SetStatus(code int) *HTTPResponse {
	r.status = code
	return r
}

// SetHeader adds a header value. An explicit Content-Length is remembered
// and suppresses the computed one.
func (r *HTTPResponse) SetHeader(name, value string) *HTTPResponse {
	if http.CanonicalHeaderKey(name) == "Content-Length" {
		if n, err := strconv.Atoi(value); err == nil {
			r.contentLength = n
		}
	}
	r.header.Add(name, value)
	return r
}

// HeaderSet reports whether name has at least one value.
func (r *HTTPResponse) HeaderSet(name string) bool {
	_, ok := r.header[http.CanonicalHeaderKey(name)]
	return ok
}

// Write appends to the body.
func (r *HTTPResponse) Write(p []byte) (int, error) {
	return r.body.Write(p)
}

// WriteString appends s to the body.
func (r *HTTPResponse) WriteString(s string) (int, error) {
	return r.body.WriteString(s)
}

// Status returns the status code.
func (r *HTTPResponse) Status() int { return r.status }

// Bytes serializes the status line, headers, blank line and body.
func (r *HTTPResponse) Bytes() []byte {
	var out bytes.Buffer
	out.WriteString("HTTP/1.1 ")
	out.WriteString(strconv.Itoa(r.status))
	out.WriteByte(' ')
	out.WriteString(http.StatusText(r.status))
	out.WriteString("\r\n")

	keys := make([]string, 0, len(r.header))
	for k := range r.header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range r.header[k] {
			out.WriteString(k)
			out.WriteString(": ")
			out.WriteString(v)
			out.WriteString("\r\n")
		}
	}
	if r.contentLength < 0 && (r.body.Len() > 0 || r.status >= http.StatusOK) {
		out.WriteString("Content-Length: ")
		out.WriteString(strconv.Itoa(r.body.Len()))
		out.WriteString("\r\n")
	}
	out.WriteString("\r\n")
	out.Write(r.body.Bytes())
	return out.Bytes()
}
