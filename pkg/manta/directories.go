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
	"context"
	"net/http"

	"github.com/jeremyhahn/go-manta/pkg/adapters"
	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/httpexec"
	"github.com/jeremyhahn/go-manta/pkg/stream"
)

// listingAccept is sent when requesting a directory listing.
const listingAccept = "application/x-json-stream; type=directory"

// List streams the entries of directory dir. The listing holds a
// connection until the iterator is exhausted or closed. A path that is not
// a directory fails with *common.NotADirectoryError.
func (c *Client) List(ctx context.Context, dir string) (stream.Iterator[*common.ObjectMetadata], error) {
	dir, err := c.resolve(dir)
	if err != nil {
		return nil, err
	}
	resp, err := c.exec.Execute(ctx, http.MethodGet, dir,
		httpexec.WithHeader("Accept", listingAccept))
	if err != nil {
		return nil, err
	}
	return stream.ParseDirectory(dir, resp.Header.Get(common.HeaderContentType), resp)
}

// ListAll reads the whole listing of dir.
func (c *Client) ListAll(ctx context.Context, dir string) ([]*common.ObjectMetadata, error) {
	it, err := c.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	return stream.Collect(it)
}

// PutDirectory creates dir. Its parent must exist. Creating an existing
// directory succeeds.
func (c *Client) PutDirectory(ctx context.Context, dir string) error {
	dir, err := c.resolve(dir)
	if err != nil {
		return err
	}
	resp, err := c.exec.Execute(ctx, http.MethodPut, dir,
		httpexec.WithHeader(common.HeaderContentType, common.DirectoryContentType))
	if err != nil {
		return err
	}
	return resp.Close()
}

// PutDirectories creates dir and any missing parents. The account and its
// top level area, e.g. "/alice/stor", always exist and are not created.
func (c *Client) PutDirectories(ctx context.Context, dir string) error {
	dir, err := c.resolve(dir)
	if err != nil {
		return err
	}
	segs := common.Segments(dir)
	if len(segs) <= 2 {
		return c.PutDirectory(ctx, dir)
	}
	cur := "/" + segs[0] + "/" + segs[1]
	for _, seg := range segs[2:] {
		cur = common.JoinPath(cur, seg)
		if err := c.PutDirectory(ctx, cur); err != nil {
			return err
		}
	}
	return nil
}

// PutSnapLink makes link a snapshot of the object at source.
func (c *Client) PutSnapLink(ctx context.Context, link, source string, opts ...PutOption) error {
	link, err := c.resolve(link)
	if err != nil {
		return err
	}
	source, err = c.resolve(source)
	if err != nil {
		return err
	}
	h := buildHeader(opts)
	h.Set(common.HeaderContentType, common.LinkContentType)
	h.Set(common.HeaderLocation, source)
	resp, err := c.exec.Execute(ctx, http.MethodPut, link, httpexec.WithHeaders(h))
	if err != nil {
		return err
	}
	return resp.Close()
}

// Delete removes an object, link or empty directory.
func (c *Client) Delete(ctx context.Context, p string) error {
	p, err := c.resolve(p)
	if err != nil {
		return err
	}
	resp, err := c.exec.Execute(ctx, http.MethodDelete, p)
	if err != nil {
		return err
	}
	return resp.Close()
}

// DeleteRecursive removes p and everything below it. A path that is not a
// directory is deleted directly. The final directory may already be gone
// when another client removed it concurrently; that is not an error.
func (c *Client) DeleteRecursive(ctx context.Context, p string) error {
	p, err := c.resolve(p)
	if err != nil {
		return err
	}
	entries, err := c.ListAll(ctx, p)
	if common.IsNotADirectory(err) {
		return c.Delete(ctx, p)
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDirectory() {
			err = c.DeleteRecursive(ctx, e.Path)
		} else {
			err = c.Delete(ctx, e.Path)
		}
		if err != nil {
			return err
		}
	}

	err = c.Delete(ctx, p)
	if common.IsNotFound(err) {
		c.logger.Debug(ctx, "directory already removed", adapters.String("path", p))
		return nil
	}
	return err
}
