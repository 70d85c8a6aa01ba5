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
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Option customizes a single request.
type Option func(*request)

type request struct {
	header http.Header
	query  url.Values
	body   io.Reader
	length int64
}

func newRequest(opts []Option) *request {
	r := &request{
		header: make(http.Header),
		query:  make(url.Values),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithHeader sets a request header.
func WithHeader(key, value string) Option {
	return func(r *request) {
		r.header.Set(key, value)
	}
}

// WithHeaders merges h into the request headers.
func WithHeaders(h http.Header) Option {
	return func(r *request) {
		for k, vs := range h {
			for _, v := range vs {
				r.header.Add(k, v)
			}
		}
	}
}

// WithQuery sets a query parameter.
func WithQuery(key, value string) Option {
	return func(r *request) {
		r.query.Set(key, value)
	}
}

// WithBody streams body as the request payload. A negative length sends
// the body with chunked transfer encoding.
func WithBody(body io.Reader, length int64) Option {
	return func(r *request) {
		r.body = body
		r.length = length
		if length >= 0 {
			r.header.Set("Content-Length", strconv.FormatInt(length, 10))
		}
	}
}

// WithBytes sends data with the given content type.
func WithBytes(data []byte, contentType string) Option {
	return func(r *request) {
		r.body = bytes.NewReader(data)
		r.length = int64(len(data))
		if contentType != "" {
			r.header.Set("Content-Type", contentType)
		}
	}
}
