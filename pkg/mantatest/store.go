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
	"crypto/md5" // #nosec G501 -- Content-MD5 is part of the wire protocol
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-manta/pkg/common"
)

// Store errors carry the service error code they are reported with.
var (
	ErrNotFound           = errors.New("ResourceNotFound")
	ErrParentNotFound     = errors.New("DirectoryDoesNotExist")
	ErrParentNotDirectory = errors.New("ParentNotDirectory")
	ErrDirectoryNotEmpty  = errors.New("DirectoryNotEmpty")
	ErrIsDirectory        = errors.New("InvalidUpdate")
	ErrChecksumMismatch   = errors.New("ChecksumError")
	ErrLinkSource         = errors.New("SourceObjectNotFound")
)

// node is a stored object or directory.
type node struct {
	dir         bool
	data        []byte
	contentType string
	metadata    common.Metadata
	etag        string
	md5         string
	durability  int
	mtime       time.Time
}

func (n *node) clone() *node {
	c := *n
	c.data = append([]byte(nil), n.data...)
	c.metadata = make(common.Metadata, len(n.metadata))
	for k, v := range n.metadata {
		c.metadata[k] = v
	}
	return &c
}

// Store is an in-memory directory tree keyed by normalized path.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*node
	now   func() time.Time
}

// NewStore returns a store with the root directory only.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	s := &Store{nodes: make(map[string]*node), now: now}
	s.nodes["/"] = &node{dir: true, mtime: now()}
	return s
}

// AddAccount creates the standard top level directories for account.
func (s *Store) AddAccount(account string) {
	home := "/" + account
	for _, p := range []string{home, home + "/stor", home + "/public", home + "/jobs", home + "/reports", home + "/uploads"} {
		_ = s.MkdirAll(p)
	}
}

// Mkdir creates a directory whose parent must exist. Creating an existing
// directory is not an error.
func (s *Store) Mkdir(p string) error {
	p = common.NormalizePath(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mkdirLocked(p)
}

func (s *Store) mkdirLocked(p string) error {
	if n, ok := s.nodes[p]; ok {
		if n.dir {
			n.mtime = s.now()
			return nil
		}
		return fmt.Errorf("%w: %s", ErrParentNotDirectory, p)
	}
	if err := s.checkParentLocked(p); err != nil {
		return err
	}
	s.nodes[p] = &node{dir: true, mtime: s.now(), etag: uuid.NewString(), metadata: common.Metadata{}}
	return nil
}

// MkdirAll creates p and any missing parents.
func (s *Store) MkdirAll(p string) error {
	p = common.NormalizePath(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := ""
	for _, seg := range common.Segments(p) {
		cur += "/" + seg
		if err := s.mkdirLocked(cur); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) checkParentLocked(p string) error {
	parent, ok := s.nodes[common.ParentPath(p)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParentNotFound, common.ParentPath(p))
	}
	if !parent.dir {
		return fmt.Errorf("%w: %s", ErrParentNotDirectory, common.ParentPath(p))
	}
	return nil
}

// Put stores an object. contentMD5, when set, must match the data.
func (s *Store) Put(p string, data []byte, contentType, contentMD5 string, md common.Metadata, durability int) (*node, error) {
	p = common.NormalizePath(p)
	sum := md5.Sum(data) // #nosec G401
	computed := base64.StdEncoding.EncodeToString(sum[:])
	if contentMD5 != "" && contentMD5 != computed {
		return nil, ErrChecksumMismatch
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if durability <= 0 {
		durability = 2
	}
	if md == nil {
		md = common.Metadata{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.nodes[p]; ok && existing.dir {
		return nil, fmt.Errorf("%w: %s is a directory", ErrIsDirectory, p)
	}
	if err := s.checkParentLocked(p); err != nil {
		return nil, err
	}
	n := &node{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		metadata:    md,
		etag:        uuid.NewString(),
		md5:         computed,
		durability:  durability,
		mtime:       s.now(),
	}
	s.nodes[p] = n
	return n.clone(), nil
}

// Link makes dst a snapshot of the object at src.
func (s *Store) Link(src, dst string) error {
	src = common.NormalizePath(src)
	dst = common.NormalizePath(dst)
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[src]
	if !ok || n.dir {
		return fmt.Errorf("%w: %s", ErrLinkSource, src)
	}
	if err := s.checkParentLocked(dst); err != nil {
		return err
	}
	c := n.clone()
	c.mtime = s.now()
	s.nodes[dst] = c
	return nil
}

// Get returns a copy of the node at p.
func (s *Store) Get(p string) (*node, error) {
	p = common.NormalizePath(p)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return n.clone(), nil
}

// Data returns the content of the object at p.
func (s *Store) Data(p string) ([]byte, bool) {
	n, err := s.Get(p)
	if err != nil || n.dir {
		return nil, false
	}
	return n.data, true
}

// Exists reports whether p exists.
func (s *Store) Exists(p string) bool {
	_, err := s.Get(p)
	return err == nil
}

// UpdateMetadata replaces the user metadata and, when set, the content type.
func (s *Store) UpdateMetadata(p, contentType string, md common.Metadata) error {
	p = common.NormalizePath(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if contentType != "" && !n.dir {
		n.contentType = contentType
	}
	n.metadata = md
	n.mtime = s.now()
	return nil
}

// Delete removes an object or an empty directory.
func (s *Store) Delete(p string) error {
	p = common.NormalizePath(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if n.dir && len(s.childrenLocked(p)) > 0 {
		return fmt.Errorf("%w: %s", ErrDirectoryNotEmpty, p)
	}
	delete(s.nodes, p)
	return nil
}

// List returns the children of directory p sorted by name.
func (s *Store) List(p string) ([]*common.ObjectMetadata, error) {
	p = common.NormalizePath(p)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if !n.dir {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrParentNotDirectory, p)
	}
	var out []*common.ObjectMetadata
	for _, child := range s.childrenLocked(p) {
		out = append(out, s.nodes[child].meta(child))
	}
	return out, nil
}

func (s *Store) childrenLocked(p string) []string {
	prefix := strings.TrimSuffix(p, "/") + "/"
	var out []string
	for k := range s.nodes {
		if k == p || !strings.HasPrefix(k, prefix) {
			continue
		}
		if !strings.Contains(k[len(prefix):], "/") {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (n *node) meta(p string) *common.ObjectMetadata {
	om := &common.ObjectMetadata{
		Path:         p,
		Type:         common.TypeObject,
		Size:         int64(len(n.data)),
		ContentType:  n.contentType,
		ETag:         n.etag,
		LastModified: n.mtime,
		MD5:          n.md5,
		Durability:   n.durability,
		Metadata:     n.metadata,
	}
	if n.dir {
		om.Type = common.TypeDirectory
		om.ContentType = common.DirectoryContentType
		om.Size = 0
	}
	return om
}

// listingBody renders entries as listing lines.
func listingBody(entries []*common.ObjectMetadata) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range entries {
		line, err := common.EncodeListingEntry(e)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
