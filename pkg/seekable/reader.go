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

// Package seekable provides random access reads over a remote object
// using ranged GET requests.
package seekable

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/httpexec"
)

// DefaultBufferSize is the read-ahead kept for sequential reads.
const DefaultBufferSize = 64 << 10

// Executor issues requests on behalf of the reader.
type Executor interface {
	Execute(ctx context.Context, method, path string, opts ...httpexec.Option) (*httpexec.Response, error)
}

// Option configures a Reader.
type Option func(*Reader)

// WithPosition starts the reader at pos.
func WithPosition(pos int64) Option {
	return func(r *Reader) {
		r.pos = pos
	}
}

// WithBufferSize sets the read-ahead buffer size.
func WithBufferSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.bufSize = n
		}
	}
}

// WithSize seeds the object size so that io.SeekEnd needs no request.
func WithSize(size int64) Option {
	return func(r *Reader) {
		r.size = size
	}
}

// stream is the open state: a response body whose next unread byte is at
// anchor.
type stream struct {
	resp   *httpexec.Response
	buf    *bufio.Reader
	anchor int64
}

// Reader is an io.ReadSeekCloser over a remote object. A connection is
// opened lazily on Read and reused while reads stay sequential; Seek only
// moves the cursor. A Reader is not safe for concurrent use.
type Reader struct {
	ctx     context.Context
	exec    Executor
	path    string
	bufSize int

	pos    int64
	size   int64 // -1 while unknown
	open   *stream
	closed bool
}

var _ io.ReadSeekCloser = (*Reader)(nil)

// New returns a Reader for path. ctx bounds every request the reader makes.
func New(ctx context.Context, exec Executor, path string, opts ...Option) (*Reader, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", common.ErrInvalidArgument)
	}
	r := &Reader{
		ctx:     ctx,
		exec:    exec,
		path:    path,
		bufSize: DefaultBufferSize,
		size:    -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pos < 0 {
		return nil, &common.OutOfRangeError{Position: r.pos}
	}
	return r, nil
}

// Path returns the object path.
func (r *Reader) Path() string { return r.path }

// Position returns the current offset.
func (r *Reader) Position() int64 { return r.pos }

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, common.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.size >= 0 && r.pos >= r.size {
		r.drop()
		return 0, io.EOF
	}

	if r.open != nil && r.open.anchor != r.pos {
		r.realign()
	}
	if r.open == nil {
		if err := r.connect(); err != nil {
			return 0, err
		}
	}

	n, err := r.open.buf.Read(p)
	r.pos += int64(n)
	r.open.anchor += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if r.size < 0 {
				r.size = r.pos
			}
			r.release()
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		r.drop()
		return n, err
	}
	return n, nil
}

// realign keeps the open stream when the cursor moved forward inside the
// buffered window, otherwise drops it.
func (r *Reader) realign() {
	skip := r.pos - r.open.anchor
	if skip > 0 && skip <= int64(r.open.buf.Buffered()) {
		discarded, _ := r.open.buf.Discard(int(skip))
		r.open.anchor += int64(discarded)
		return
	}
	r.drop()
}

// connect opens a ranged request at the current position.
func (r *Reader) connect() error {
	resp, err := r.exec.Execute(r.ctx, http.MethodGet, r.path,
		httpexec.WithHeader("Range", "bytes="+strconv.FormatInt(r.pos, 10)+"-"))
	if err != nil {
		if common.StatusCode(err) == http.StatusRequestedRangeNotSatisfiable {
			if r.size < 0 {
				r.size = r.pos
			}
			return io.EOF
		}
		return err
	}
	if common.IsDirectoryContentType(resp.Header.Get(common.HeaderContentType)) {
		_ = resp.Abort()
		return common.ErrIsDirectory
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		start, total, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if !ok || start != r.pos {
			_ = resp.Abort()
			return fmt.Errorf("seekable: unexpected content range %q for position %d",
				resp.Header.Get("Content-Range"), r.pos)
		}
		if total >= 0 {
			r.size = total
		}
	case http.StatusOK:
		// The range was ignored; skip ahead to the cursor.
		if n := resp.ContentLength(); n >= 0 {
			r.size = n
		}
		if r.pos > 0 {
			if _, err := io.CopyN(io.Discard, resp, r.pos); err != nil {
				_ = resp.Abort()
				if errors.Is(err, io.EOF) {
					return io.EOF
				}
				return err
			}
		}
	default:
		_ = resp.Close()
		return fmt.Errorf("seekable: unexpected status %d", resp.StatusCode)
	}

	r.open = &stream{
		resp:   resp,
		buf:    bufio.NewReaderSize(resp, r.bufSize),
		anchor: r.pos,
	}
	return nil
}

// release closes a fully read stream.
func (r *Reader) release() {
	if r.open != nil {
		_ = r.open.resp.Close()
		r.open = nil
	}
}

// drop aborts a stream that still has unread data.
func (r *Reader) drop() {
	if r.open != nil {
		_ = r.open.resp.Abort()
		r.open = nil
	}
}

// Seek implements io.Seeker. It never performs I/O except to learn the
// object size for io.SeekEnd.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, common.ErrClosed
	}
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		size, err := r.Size()
		if err != nil {
			return r.pos, err
		}
		target = size + offset
	default:
		return r.pos, fmt.Errorf("%w: invalid whence %d", common.ErrInvalidArgument, whence)
	}
	if target < 0 {
		return r.pos, &common.OutOfRangeError{Position: target}
	}
	r.pos = target
	return target, nil
}

// Size returns the object size, issuing a HEAD request if it is not yet
// known.
func (r *Reader) Size() (int64, error) {
	if r.size >= 0 {
		return r.size, nil
	}
	if r.closed {
		return 0, common.ErrClosed
	}
	resp, err := r.exec.Execute(r.ctx, http.MethodHead, r.path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Close() }()
	n := resp.ContentLength()
	if n < 0 {
		return 0, fmt.Errorf("seekable: %s has no content length", r.path)
	}
	r.size = n
	return n, nil
}

// Close releases any open connection. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.drop()
	return nil
}

// parseContentRange parses "bytes start-end/total". total is -1 when the
// service reports "*".
func parseContentRange(v string) (start, total int64, ok bool) {
	v, found := strings.CutPrefix(strings.TrimSpace(v), "bytes ")
	if !found {
		return 0, 0, false
	}
	rng, size, found := strings.Cut(v, "/")
	if !found {
		return 0, 0, false
	}
	first, _, found := strings.Cut(rng, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if size == "*" {
		return start, -1, true
	}
	total, err = strconv.ParseInt(size, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return start, total, true
}
