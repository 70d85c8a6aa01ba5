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

package mantatest

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-manta/pkg/common"
)

// getNode serves objects, directory listings and job resources.
func (s *Server) getNode(c *gin.Context) {
	p := common.NormalizePath(c.Request.URL.Path)
	if s.serveJobResource(c, p) {
		return
	}

	n, err := s.store.Get(p)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	if n.dir {
		entries, err := s.store.List(p)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		body, err := listingBody(entries)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.Header(common.HeaderResultSetSize, strconv.Itoa(len(entries)))
		c.Header(common.HeaderLastModified, n.mtime.UTC().Format(http.TimeFormat))
		if c.Request.Method == http.MethodHead {
			c.Header(common.HeaderContentType, common.DirectoryContentType)
			c.Status(http.StatusOK)
			return
		}
		c.Data(http.StatusOK, common.DirectoryContentType, body)
		return
	}

	h := c.Writer.Header()
	h.Set(common.HeaderContentType, n.contentType)
	h.Set(common.HeaderETag, n.etag)
	h.Set(common.HeaderContentMD5, n.md5)
	h.Set(common.HeaderDurabilityLevel, strconv.Itoa(n.durability))
	for k, v := range n.metadata.Header() {
		h[k] = v
	}
	http.ServeContent(c.Writer, c.Request, "", n.mtime, bytes.NewReader(n.data))
}

// putNode creates objects, directories and snaplinks, and updates metadata.
func (s *Server) putNode(c *gin.Context) {
	p := common.NormalizePath(c.Request.URL.Path)
	r := c.Request
	contentType := r.Header.Get(common.HeaderContentType)
	md := metadataFromRequest(r.Header)

	if r.URL.Query().Get("metadata") == "true" {
		if err := s.store.UpdateMetadata(p, contentType, md); err != nil {
			respondStoreError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	case common.IsDirectoryContentType(contentType):
		if err := s.store.Mkdir(p); err != nil {
			respondStoreError(c, err)
			return
		}
	case common.IsLinkContentType(contentType):
		src := r.Header.Get(common.HeaderLocation)
		if src == "" {
			respondError(c, http.StatusBadRequest, "InvalidLink", "link requires a Location header")
			return
		}
		if err := s.store.Link(src, p); err != nil {
			respondStoreError(c, err)
			return
		}
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			respondError(c, http.StatusBadRequest, "BadRequest", err.Error())
			return
		}
		durability, _ := strconv.Atoi(r.Header.Get(common.HeaderDurabilityLevel))
		n, err := s.store.Put(p, data, contentType, r.Header.Get(common.HeaderContentMD5), md, durability)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.Header(common.HeaderETag, n.etag)
		c.Header("Computed-MD5", n.md5)
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteNode(c *gin.Context) {
	if err := s.store.Delete(c.Request.URL.Path); err != nil {
		respondStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func metadataFromRequest(h http.Header) common.Metadata {
	md := common.Metadata{}
	for k, vs := range h {
		if strings.HasPrefix(strings.ToLower(k), common.MetadataHeaderPrefix) && len(vs) > 0 {
			md.Set(k, vs[0])
		}
	}
	return md
}
