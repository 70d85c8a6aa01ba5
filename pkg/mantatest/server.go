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

// Package mantatest runs an in-process object service for tests. It speaks
// the same wire protocol as the real service: signed requests, directory
// listings, ranged reads, snaplinks and compute jobs.
package mantatest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-manta/pkg/adapters"
	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/signer"
)

// DefaultAccount is created when no account option is given.
const DefaultAccount = "test"

var errMissingAuthorization = errors.New("request is not signed")

// Request is a recorded request.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
}

// fault is a one-shot error injected for method and path.
type fault struct {
	method string
	path   string
	status int
	code   string
}

// Option configures a Server.
type Option func(*Server)

// WithAccount adds an account and its standard directories.
func WithAccount(account string) Option {
	return func(s *Server) { s.accounts = append(s.accounts, account) }
}

// WithVerifier checks every signed request against v. Without a verifier
// any request carrying a signature is accepted.
func WithVerifier(v *signer.Verifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithTask replaces the command runner used by jobs.
func WithTask(fn TaskFunc) Option {
	return func(s *Server) { s.task = fn }
}

// WithLogger logs every request.
func WithLogger(logger adapters.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock sets the time source for modification times and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithAutoArchive moves jobs to the archive as soon as they finish.
func WithAutoArchive() Option {
	return func(s *Server) { s.autoArchive = true }
}

// Server is a running fake service.
type Server struct {
	URL string

	accounts    []string
	verifier    *signer.Verifier
	task        TaskFunc
	logger      adapters.Logger
	now         func() time.Time
	autoArchive bool

	store  *Store
	engine *gin.Engine
	http   *httptest.Server

	mu       sync.Mutex
	requests []Request
	faults   []fault
	jobs     *jobTable
}

// New starts a server. Call Close when done.
func New(opts ...Option) *Server {
	s := &Server{
		task:   CatTask,
		logger: adapters.NewNoOpLogger(),
		now:    time.Now,
		jobs:   newJobTable(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.accounts) == 0 {
		s.accounts = []string{DefaultAccount}
	}
	s.store = NewStore(s.now)
	for _, a := range s.accounts {
		s.store.AddAccount(a)
	}

	gin.SetMode(gin.TestMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.logRequests(), s.record(), s.injectFaults(), s.authenticate())
	s.setupRoutes()

	s.http = httptest.NewServer(s.engine)
	s.URL = s.http.URL
	return s
}

func (s *Server) setupRoutes() {
	s.engine.HEAD("/*path", s.getNode)
	s.engine.GET("/*path", s.getNode)
	s.engine.PUT("/*path", s.putNode)
	s.engine.DELETE("/*path", s.deleteNode)
	s.engine.POST("/*path", s.postJob)
}

// Close shuts the server down.
func (s *Server) Close() {
	s.http.Close()
}

// Client returns an HTTP client for the server.
func (s *Server) Client() *http.Client {
	return s.http.Client()
}

// Handler exposes the router for use with other listeners.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Store gives direct access to the stored tree.
func (s *Server) Store() *Store {
	return s.store
}

// Home returns the home directory of the first account.
func (s *Server) Home() string {
	return "/" + s.accounts[0]
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests counts received requests matching method and path.
func (s *Server) CountRequests(method, path string) int {
	path = common.NormalizePath(path)
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// ResetRequests forgets recorded requests.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}

// Fail makes the next request for method and path fail with status and the
// service error code.
func (s *Server) Fail(method, path string, status int, code string) {
	s.mu.Lock()
	s.faults = append(s.faults, fault{method: method, path: common.NormalizePath(path), status: status, code: code})
	s.mu.Unlock()
}

func (s *Server) takeFault(method, path string) (fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.faults {
		if f.method == method && f.path == path {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
			return f, true
		}
	}
	return fault{}, false
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []adapters.Field{
			adapters.String("method", c.Request.Method),
			adapters.String("path", c.Request.URL.Path),
			adapters.Int("status", status),
			adapters.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= 500:
			s.logger.Error(c.Request.Context(), "request completed", fields...)
		case status >= 400:
			s.logger.Warn(c.Request.Context(), "request completed", fields...)
		default:
			s.logger.Debug(c.Request.Context(), "request completed", fields...)
		}
	}
}

func (s *Server) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		r := Request{
			Method: c.Request.Method,
			Path:   common.NormalizePath(c.Request.URL.Path),
			Query:  c.Request.URL.RawQuery,
			Header: c.Request.Header.Clone(),
		}
		s.mu.Lock()
		s.requests = append(s.requests, r)
		s.mu.Unlock()

		c.Header(common.HeaderRequestID, uuid.NewString())
		c.Next()
	}
}

func (s *Server) injectFaults() gin.HandlerFunc {
	return func(c *gin.Context) {
		if f, ok := s.takeFault(c.Request.Method, common.NormalizePath(c.Request.URL.Path)); ok {
			respondError(c, f.status, f.code, "injected failure")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.checkAuth(c.Request); err != nil {
			s.logger.Warn(c.Request.Context(), "authentication failed",
				adapters.String("path", c.Request.URL.Path),
				adapters.Err(err))
			respondError(c, http.StatusForbidden, "InvalidSignature", err.Error())
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) checkAuth(r *http.Request) error {
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && isPublic(r.URL.Path) {
		return nil
	}
	if r.URL.Query().Has("signature") {
		if s.verifier == nil {
			return nil
		}
		u := *r.URL
		u.Host = r.Host
		return s.verifier.VerifyURL(r.Method, &u, s.now())
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Signature ") {
		return errMissingAuthorization
	}
	if s.verifier == nil {
		return nil
	}
	return s.verifier.VerifyRequest(r)
}

// isPublic reports whether p lives under an account's public directory.
func isPublic(p string) bool {
	segs := common.Segments(common.NormalizePath(p))
	return len(segs) >= 2 && segs[1] == "public"
}

// serviceError is the wire form of an error response.
type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(c *gin.Context, status int, code, message string) {
	if c.Request.Method == http.MethodHead {
		c.Status(status)
		return
	}
	c.JSON(status, serviceError{Code: code, Message: message})
}

// respondStoreError maps store errors to service responses.
func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respondError(c, http.StatusNotFound, "ResourceNotFound", err.Error())
	case errors.Is(err, ErrParentNotFound):
		respondError(c, http.StatusNotFound, "DirectoryDoesNotExist", err.Error())
	case errors.Is(err, ErrLinkSource):
		respondError(c, http.StatusNotFound, "SourceObjectNotFound", err.Error())
	case errors.Is(err, ErrParentNotDirectory):
		respondError(c, http.StatusBadRequest, "ParentNotDirectory", err.Error())
	case errors.Is(err, ErrDirectoryNotEmpty):
		respondError(c, http.StatusBadRequest, "DirectoryNotEmpty", err.Error())
	case errors.Is(err, ErrIsDirectory):
		respondError(c, http.StatusBadRequest, "InvalidUpdate", err.Error())
	case errors.Is(err, ErrChecksumMismatch):
		respondError(c, http.StatusBadRequest, "ChecksumError", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "InternalError", err.Error())
	}
}
