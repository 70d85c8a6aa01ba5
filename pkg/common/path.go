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
	"net/url"
	"strings"
)

const (
	// Separator separates path segments.
	Separator = "/"

	// HomeAlias is replaced by the account home directory.
	HomeAlias = "~~"
)

// NormalizePath returns p as an absolute path with duplicate separators and
// any trailing separator removed. The root is returned as "/".
func NormalizePath(p string) string {
	if p == "" {
		return Separator
	}
	var b strings.Builder
	b.Grow(len(p) + 1)
	if !strings.HasPrefix(p, Separator) && !strings.HasPrefix(p, HomeAlias) {
		b.WriteString(Separator)
	}
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	out := b.String()
	if len(out) > 1 {
		out = strings.TrimSuffix(out, Separator)
	}
	return out
}

// ExpandHome replaces a leading "~~" in p with home.
func ExpandHome(p, home string) string {
	if p == HomeAlias || strings.HasPrefix(p, HomeAlias+Separator) {
		return JoinPath(home, strings.TrimPrefix(p, HomeAlias))
	}
	return p
}

// EscapePath percent-encodes every segment of p. Separators are kept.
func EscapePath(p string) string {
	segs := strings.Split(p, Separator)
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, Separator)
}

// JoinPath appends name to dir with exactly one separator between them.
func JoinPath(dir, name string) string {
	dir = strings.TrimRight(dir, Separator)
	name = strings.TrimLeft(name, Separator)
	if name == "" {
		if dir == "" {
			return Separator
		}
		return dir
	}
	return dir + Separator + name
}

// LastSegment returns the final segment of p, ignoring trailing separators.
func LastSegment(p string) string {
	p = strings.TrimRight(p, Separator)
	if i := strings.LastIndex(p, Separator); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Segments splits p into its non-empty segments.
func Segments(p string) []string {
	parts := strings.Split(p, Separator)
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParentPath returns the directory containing p.
func ParentPath(p string) string {
	p = NormalizePath(p)
	i := strings.LastIndex(p, Separator)
	if i <= 0 {
		return Separator
	}
	return p[:i]
}
