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

// Package httpexec executes signed requests against the storage service
// and maps failures onto the typed errors in package common.
package httpexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-manta/pkg/adapters"
	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/signer"
	"github.com/jeremyhahn/go-manta/pkg/version"
	"golang.org/x/time/rate"
)

var (
	ErrEndpointRequired = errors.New("httpexec: endpoint is required")
	ErrSignerRequired   = errors.New("httpexec: signer is required")
)

// maxErrorBody bounds how much of a failure response is read.
const maxErrorBody = 64 << 10

// Config configures an Executor.
type Config struct {
	// Endpoint is the service base URL, e.g. https://us-east.manta.example.com.
	Endpoint string

	Signer    signer.Signer
	Transport Transport
	Logger    adapters.Logger

	// RequestsPerSecond limits the request rate; zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// UserAgent defaults to version.UserAgent().
	UserAgent string
}

// Executor builds, signs and sends requests. It holds no per-call state
// and is safe for concurrent use.
type Executor struct {
	base      *url.URL
	signer    signer.Signer
	transport Transport
	logger    adapters.Logger
	limiter   *rate.Limiter
	userAgent string
}

// New validates cfg and returns an Executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	base, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpexec: invalid endpoint: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("httpexec: invalid endpoint scheme %q", base.Scheme)
	}
	if cfg.Signer == nil {
		return nil, ErrSignerRequired
	}

	e := &Executor{
		base:      base,
		signer:    cfg.Signer,
		transport: cfg.Transport,
		logger:    cfg.Logger,
		userAgent: cfg.UserAgent,
	}
	if e.transport == nil {
		client, err := NewHTTPClient(DefaultTransportConfig())
		if err != nil {
			return nil, err
		}
		e.transport = client
	}
	if e.logger == nil {
		e.logger = adapters.NewNoOpLogger()
	}
	if e.userAgent == "" {
		e.userAgent = version.UserAgent()
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return e, nil
}

// Endpoint returns the configured base URL.
func (e *Executor) Endpoint() string {
	return e.base.String()
}

// URL returns the absolute URL for path with every segment escaped.
func (e *Executor) URL(path string) *url.URL {
	p := common.NormalizePath(path)
	u := *e.base
	u.Path = e.base.Path + p
	u.RawPath = e.base.EscapedPath() + common.EscapePath(p)
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}

// Execute sends a signed request and returns the response. Any status of
// 400 or above is returned as *common.RemoteResponseError with the body
// already released. On success the caller must Close the response.
func (e *Executor) Execute(ctx context.Context, method, path string, opts ...Option) (*Response, error) {
	if err := common.ValidatePath(path); err != nil {
		return nil, err
	}
	r := newRequest(opts)

	u := e.URL(path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("httpexec: rate limit: %w", err)
		}
	}

	body := r.body
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("httpexec: build request: %w", err)
	}
	for k, vs := range r.header {
		req.Header[k] = vs
	}
	if r.body != nil {
		req.ContentLength = r.length
		if r.length < 0 {
			req.ContentLength = -1
			req.Header.Del("Content-Length")
		}
	}
	req.Header.Set("User-Agent", e.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}

	// Signatures are time bound so signing happens right before sending.
	if err := e.signer.SignRequest(req); err != nil {
		return nil, &common.AuthenticationError{Err: err}
	}

	start := time.Now()
	resp, err := e.transport.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Debug(ctx, "request failed",
			adapters.String("method", method),
			adapters.String("path", path),
			adapters.Duration("elapsed", elapsed),
			adapters.Err(err))
		return nil, &common.ConnectionError{Method: method, URL: u.Redacted(), Err: err}
	}

	e.logger.Debug(ctx, "request",
		adapters.String("method", method),
		adapters.String("path", path),
		adapters.Int("status", resp.StatusCode),
		adapters.String("request_id", resp.Header.Get(common.HeaderRequestID)),
		adapters.Duration("elapsed", elapsed))

	if resp.StatusCode >= http.StatusBadRequest {
		defer func() { _ = resp.Body.Close() }()
		return nil, remoteError(method, path, resp)
	}
	return newResponse(resp), nil
}

// errorBody is the JSON document the service returns on failure.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func remoteError(method, path string, resp *http.Response) error {
	rre := &common.RemoteResponseError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get(common.HeaderRequestID),
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if len(data) > 0 && json.Unmarshal(data, &eb) == nil {
		rre.ServerCode = eb.Code
		rre.Message = eb.Message
	} else if len(data) > 0 {
		rre.Message = strings.TrimSpace(string(data))
	}
	rre.Code = common.ParseServiceCode(rre.ServerCode, resp.StatusCode)
	return rre
}

// SignURL returns a capability URL for method on path that stays valid
// until expires.
func (e *Executor) SignURL(method, path string, expires time.Time) (*url.URL, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", common.ErrInvalidArgument)
	}
	if expires.IsZero() {
		return nil, fmt.Errorf("%w: expiry is required", common.ErrInvalidArgument)
	}
	if method == "" {
		method = http.MethodGet
	}
	if err := common.ValidatePath(path); err != nil {
		return nil, err
	}
	u, err := e.signer.SignURL(method, e.URL(path), expires)
	if err != nil {
		return nil, &common.AuthenticationError{Err: err}
	}
	return u, nil
}

func parseLength(s string) int64 {
	if s == "" {
		return -1
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
