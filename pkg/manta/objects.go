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

package manta

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-manta/pkg/adapters"
	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/httpexec"
	"github.com/jeremyhahn/go-manta/pkg/seekable"
)

// PutOption adjusts an upload.
type PutOption func(http.Header)

// WithContentType sets the stored content type.
func WithContentType(ct string) PutOption {
	return func(h http.Header) { h.Set(common.HeaderContentType, ct) }
}

// WithMetadata attaches user metadata. Keys without the "m-" prefix get it.
func WithMetadata(md common.Metadata) PutOption {
	return func(h http.Header) {
		for k, v := range md.Header() {
			h[k] = v
		}
	}
}

// WithDurability sets the number of stored copies.
func WithDurability(copies int) PutOption {
	return func(h http.Header) { h.Set(common.HeaderDurabilityLevel, strconv.Itoa(copies)) }
}

// WithContentMD5 asks the service to verify the upload against sum, the
// base64 encoded MD5 of the body.
func WithContentMD5(sum string) PutOption {
	return func(h http.Header) { h.Set(common.HeaderContentMD5, sum) }
}

// WithHeader sets an arbitrary request header.
func WithHeader(key, value string) PutOption {
	return func(h http.Header) { h.Set(key, value) }
}

func buildHeader(opts []PutOption) http.Header {
	h := http.Header{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func userMetadata(h http.Header) common.Metadata {
	md := common.Metadata{}
	for k, vs := range h {
		if strings.HasPrefix(strings.ToLower(k), common.MetadataHeaderPrefix) && len(vs) > 0 {
			md.Set(k, vs[0])
		}
	}
	return md
}

// Head returns the metadata of the object or directory at p.
func (c *Client) Head(ctx context.Context, p string) (*common.ObjectMetadata, error) {
	p, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	resp, err := c.exec.Execute(ctx, http.MethodHead, p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Close() }()
	return common.MetadataFromHeaders(p, resp.Header), nil
}

// Get returns the metadata reported by a GET of p without reading the
// body.
func (c *Client) Get(ctx context.Context, p string) (*common.ObjectMetadata, error) {
	p, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	resp, err := c.exec.Execute(ctx, http.MethodGet, p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Abort() }()
	return common.MetadataFromHeaders(p, resp.Header), nil
}

// Exists reports whether p can be read. A not-found answer is not an
// error; any other failure is returned.
func (c *Client) Exists(ctx context.Context, p string) (bool, error) {
	_, err := c.Head(ctx, p)
	switch {
	case err == nil:
		return true, nil
	case common.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// ObjectReader is an open object body. Close must be called.
type ObjectReader struct {
	Metadata *common.ObjectMetadata
	resp     *httpexec.Response
}

func (r *ObjectReader) Read(p []byte) (int, error) { return r.resp.Read(p) }

// Close releases the connection.
func (r *ObjectReader) Close() error { return r.resp.Close() }

// GetReader opens the object at p for reading. Directories are rejected
// with common.ErrIsDirectory.
func (c *Client) GetReader(ctx context.Context, p string) (*ObjectReader, error) {
	p, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	resp, err := c.exec.Execute(ctx, http.MethodGet, p)
	if err != nil {
		return nil, err
	}
	md := common.MetadataFromHeaders(p, resp.Header)
	if md.IsDirectory() {
		_ = resp.Abort()
		return nil, fmt.Errorf("%w: %s", common.ErrIsDirectory, p)
	}
	return &ObjectReader{Metadata: md, resp: resp}, nil
}

// GetString reads the whole object at p.
func (c *Client) GetString(ctx context.Context, p string) (string, error) {
	r, err := c.GetReader(ctx, p)
	if err != nil {
		return "", err
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("manta: reading %s: %w", p, err)
	}
	return string(data), nil
}

// GetToTempFile downloads the object at p to a new temporary file and
// returns its name. The caller owns the file.
func (c *Client) GetToTempFile(ctx context.Context, p string) (string, error) {
	r, err := c.GetReader(ctx, p)
	if err != nil {
		return "", err
	}
	defer func() { _ = r.Close() }()

	f, err := os.CreateTemp("", "manta-*-"+common.LastSegment(r.Metadata.Path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("manta: downloading %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// SeekableReader returns a reader over p that supports Seek. No request is
// made until the first Read.
func (c *Client) SeekableReader(ctx context.Context, p string, opts ...seekable.Option) (*seekable.Reader, error) {
	p, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	return seekable.New(ctx, c.exec, p, opts...)
}

// Put uploads body to p. size is the exact body length, or negative when
// unknown, in which case the body is sent chunked.
func (c *Client) Put(ctx context.Context, p string, body io.Reader, size int64, opts ...PutOption) (*common.ObjectMetadata, error) {
	p, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	h := buildHeader(opts)
	md := userMetadata(h)
	if err := common.ValidateMetadata(md); err != nil {
		return nil, err
	}
	if body == nil {
		body = http.NoBody
		size = 0
	}

	resp, err := c.exec.Execute(ctx, http.MethodPut, p,
		httpexec.WithHeaders(h),
		httpexec.WithBody(body, size))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Close() }()

	om := common.MetadataFromHeaders(p, resp.Header)
	if ct := h.Get(common.HeaderContentType); ct != "" {
		om.ContentType = ct
	}
	om.Metadata = md
	if size >= 0 {
		om.Size = size
	}
	if sum := resp.Header.Get("Computed-MD5"); sum != "" {
		om.MD5 = sum
	}
	c.logger.Debug(ctx, "object stored", adapters.String("path", p), adapters.Int64("size", size))
	return om, nil
}

// PutString uploads s to p.
func (c *Client) PutString(ctx context.Context, p, s string, opts ...PutOption) (*common.ObjectMetadata, error) {
	return c.Put(ctx, p, strings.NewReader(s), int64(len(s)), opts...)
}

// PutBytes uploads data to p.
func (c *Client) PutBytes(ctx context.Context, p string, data []byte, opts ...PutOption) (*common.ObjectMetadata, error) {
	return c.Put(ctx, p, bytes.NewReader(data), int64(len(data)), opts...)
}

// PutMetadata replaces the user metadata, and optionally the content type,
// of an existing object without touching its content. Headers that only
// make sense for content are rejected before any request is made.
func (c *Client) PutMetadata(ctx context.Context, p string, md common.Metadata, opts ...PutOption) error {
	p, err := c.resolve(p)
	if err != nil {
		return err
	}
	h := buildHeader(append([]PutOption{WithMetadata(md)}, opts...))
	if err := common.ValidateMetadataUpdate(h); err != nil {
		return err
	}
	if err := common.ValidateMetadata(userMetadata(h)); err != nil {
		return err
	}
	resp, err := c.exec.Execute(ctx, http.MethodPut, p,
		httpexec.WithHeaders(h),
		httpexec.WithQuery("metadata", "true"))
	if err != nil {
		return err
	}
	return resp.Close()
}

// SignURI returns a pre-signed URL for method on p valid until expires.
func (c *Client) SignURI(method, p string, expires time.Time) (*url.URL, error) {
	p, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	return c.exec.SignURL(method, p, expires)
}

// SignURIIn is SignURI with an expiry relative to now.
func (c *Client) SignURIIn(method, p string, ttl time.Duration) (*url.URL, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", common.ErrInvalidArgument)
	}
	return c.SignURI(method, p, c.now().Add(ttl))
}
