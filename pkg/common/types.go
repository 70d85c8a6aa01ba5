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

package common

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DirectoryContentType is returned by the service for directory nodes.
	DirectoryContentType = "application/json; type=directory"

	// LinkContentType is used when creating snaplinks.
	LinkContentType = "application/json; type=link"

	// MetadataHeaderPrefix prefixes user metadata headers.
	MetadataHeaderPrefix = "m-"
)

// Header names used by the service.
const (
	HeaderContentLength   = "Content-Length"
	HeaderContentMD5      = "Content-MD5"
	HeaderContentType     = "Content-Type"
	HeaderDurabilityLevel = "Durability-Level"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderLocation        = "Location"
	HeaderRequestID       = "X-Request-Id"
	HeaderResultSetSize   = "Result-Set-Size"
)

// ObjectType is the kind of a storage node.
type ObjectType string

const (
	TypeObject    ObjectType = "object"
	TypeDirectory ObjectType = "directory"
	TypeLink      ObjectType = "link"
)

// Metadata holds user supplied metadata. Keys are stored lower-case so
// lookups are case-insensitive.
type Metadata map[string]string

// Get returns the value for key regardless of its case.
func (m Metadata) Get(key string) string {
	return m[strings.ToLower(key)]
}

// Set stores value under the lower-cased key.
func (m Metadata) Set(key, value string) {
	m[strings.ToLower(key)] = value
}

// Keys returns the keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Header renders the metadata as m-* request headers. Keys that already
// carry the prefix are sent as is.
func (m Metadata) Header() http.Header {
	h := make(http.Header, len(m))
	for k, v := range m {
		if !strings.HasPrefix(k, MetadataHeaderPrefix) {
			k = MetadataHeaderPrefix + k
		}
		h.Set(k, v)
	}
	return h
}

// ObjectMetadata describes a single node as reported by the service.
type ObjectMetadata struct {
	Path         string
	Type         ObjectType
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
	MD5          string
	Durability   int
	Metadata     Metadata
}

// IsDirectory reports whether the node is a directory.
func (o *ObjectMetadata) IsDirectory() bool {
	return o.Type == TypeDirectory
}

// Name returns the last segment of the node's path.
func (o *ObjectMetadata) Name() string {
	return LastSegment(o.Path)
}

// MetadataFromHeaders builds ObjectMetadata from response headers.
func MetadataFromHeaders(path string, h http.Header) *ObjectMetadata {
	om := &ObjectMetadata{
		Path:        path,
		Type:        TypeObject,
		ContentType: h.Get(HeaderContentType),
		ETag:        h.Get(HeaderETag),
		MD5:         h.Get(HeaderContentMD5),
		Metadata:    Metadata{},
	}

	if IsDirectoryContentType(om.ContentType) {
		om.Type = TypeDirectory
		om.Size = parseInt(h.Get(HeaderResultSetSize))
	} else {
		om.Size = parseInt(h.Get(HeaderContentLength))
	}
	if lm := h.Get(HeaderLastModified); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			om.LastModified = t
		}
	}
	if d := h.Get(HeaderDurabilityLevel); d != "" {
		om.Durability = int(parseInt(d))
	}
	for k, vs := range h {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, MetadataHeaderPrefix) && len(vs) > 0 {
			om.Metadata[lk] = vs[0]
		}
	}
	return om
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// IsDirectoryContentType reports whether ct denotes a directory listing.
func IsDirectoryContentType(ct string) bool {
	return hasJSONType(ct, "directory")
}

// IsLinkContentType reports whether ct denotes a snaplink.
func IsLinkContentType(ct string) bool {
	return hasJSONType(ct, "link")
}

func hasJSONType(ct, want string) bool {
	if ct == "" {
		return false
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" && params["type"] == want
}

// listingEntry is the wire form of a single listing line.
type listingEntry struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Mtime       time.Time `json:"mtime"`
	Size        int64     `json:"size,omitempty"`
	ETag        string    `json:"etag,omitempty"`
	Durability  int       `json:"durability,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
}

// DecodeListingEntry decodes one listing line and qualifies its name with
// dir. The service only reports leaf names.
func DecodeListingEntry(dir string, line []byte) (*ObjectMetadata, error) {
	var e listingEntry
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, err
	}
	if e.Name == "" {
		return nil, fmt.Errorf("%w: listing entry has no name", ErrInvalidArgument)
	}
	om := &ObjectMetadata{
		Path:         JoinPath(dir, e.Name),
		Type:         ObjectType(e.Type),
		Size:         e.Size,
		ETag:         e.ETag,
		LastModified: e.Mtime,
		Durability:   e.Durability,
		ContentType:  e.ContentType,
		Metadata:     Metadata{},
	}
	switch om.Type {
	case TypeDirectory:
		om.ContentType = DirectoryContentType
	case TypeObject, TypeLink:
	default:
		return nil, fmt.Errorf("%w: unknown node type %q", ErrInvalidArgument, e.Type)
	}
	return om, nil
}

// EncodeListingEntry renders om as a single listing line, without the
// trailing newline.
func EncodeListingEntry(om *ObjectMetadata) ([]byte, error) {
	e := listingEntry{
		Name:       om.Name(),
		Type:       string(om.Type),
		Mtime:      om.LastModified.UTC(),
		ETag:       om.ETag,
		Durability: om.Durability,
	}
	if om.Type != TypeDirectory {
		e.Size = om.Size
		e.ContentType = om.ContentType
	}
	return json.Marshal(e)
}
