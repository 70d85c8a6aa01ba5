// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-manta.
//
// go-manta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package httpexec

import (
	"io"
	"net/http"
	"sync"
)

// maxDrain bounds how much of an unread body is consumed on Close so the
// connection can return to the pool. Larger remainders are dropped with
// the connection.
const maxDrain = 64 << 10

// Response is a successful service response. The body must be closed by
// the caller; Close is safe to call more than once.
type Response struct {
	StatusCode int
	Header     http.Header

	body      io.ReadCloser
	closeOnce sync.Once
	closeErr  error
}

func newResponse(resp *http.Response) *Response {
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		body:       resp.Body,
	}
}

// Read reads from the response body.
func (r *Response) Read(p []byte) (int, error) {
	return r.body.Read(p)
}

// Close releases the underlying connection exactly once.
func (r *Response) Close() error {
	r.closeOnce.Do(func() {
		_, _ = io.CopyN(io.Discard, r.body, maxDrain)
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}

// Abort releases the connection without draining the body. Use it when
// the remainder of a large body is not wanted.
func (r *Response) Abort() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}

// ContentLength returns the Content-Length header or -1.
func (r *Response) ContentLength() int64 {
	return parseLength(r.Header.Get("Content-Length"))
}
