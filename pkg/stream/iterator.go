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

// Package stream turns line-delimited response bodies into lazy, single
// pass iterators that own the underlying connection.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"

	"github.com/jeremyhahn/go-manta/pkg/common"
)

// readBufferSize is the read-ahead used for line scanning.
const readBufferSize = 32 << 10

// Iterator is a pull driven sequence. Next advances and reports whether a
// value is available; Err reports the failure that ended the sequence, if
// any. The iterator closes its source when exhausted or failed; callers
// that stop early must call Close.
type Iterator[T any] interface {
	Next() bool
	Value() T
	Err() error
	Close() error
}

// DecodeFunc decodes one non-empty line. Returning ok=false skips the line;
// a non-nil error ends the sequence.
type DecodeFunc[T any] func(line []byte) (value T, ok bool, err error)

// aborter is implemented by bodies that can drop their connection without
// draining it.
type aborter interface {
	Abort() error
}

type lineIterator[T any] struct {
	path   string
	body   io.ReadCloser
	reader *bufio.Reader
	decode DecodeFunc[T]

	line    int
	current T
	err     error
	eof     bool
	closed  bool
}

// NewLineIterator decodes body one line at a time. path names the source
// in decode errors.
func NewLineIterator[T any](path string, body io.ReadCloser, decode DecodeFunc[T]) Iterator[T] {
	return &lineIterator[T]{
		path:   path,
		body:   body,
		reader: bufio.NewReaderSize(body, readBufferSize),
		decode: decode,
	}
}

func (it *lineIterator[T]) Next() bool {
	var zero T
	it.current = zero
	if it.closed {
		return false
	}
	for !it.eof {
		raw, err := it.reader.ReadBytes('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				it.err = err
				_ = it.abort()
				return false
			}
			it.eof = true
		}
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		it.line++
		v, ok, derr := it.decode(line)
		if derr != nil {
			it.err = &common.DecodeError{Path: it.path, Line: it.line, Err: derr}
			_ = it.abort()
			return false
		}
		if !ok {
			continue
		}
		it.current = v
		return true
	}
	it.err = it.Close()
	return false
}

func (it *lineIterator[T]) Value() T { return it.current }

func (it *lineIterator[T]) Err() error { return it.err }

// Close releases the body. Unread data is discarded with the connection.
func (it *lineIterator[T]) Close() error {
	if it.closed {
		return nil
	}
	if !it.eof {
		return it.abort()
	}
	it.closed = true
	return it.body.Close()
}

func (it *lineIterator[T]) abort() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if a, ok := it.body.(aborter); ok {
		return a.Abort()
	}
	return it.body.Close()
}

// JSON decodes each line strictly into a T.
func JSON[T any]() DecodeFunc[T] {
	return func(line []byte) (T, bool, error) {
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return v, false, err
		}
		return v, true, nil
	}
}

// Lines yields each non-empty line as a string.
func Lines(line []byte) (string, bool, error) {
	return string(line), true, nil
}

type mapIterator[T, U any] struct {
	src Iterator[T]
	fn  func(T) (U, error)
	cur U
	err error
}

// Map transforms every value of src with fn. An error from fn ends the
// sequence and closes src.
func Map[T, U any](src Iterator[T], fn func(T) (U, error)) Iterator[U] {
	return &mapIterator[T, U]{src: src, fn: fn}
}

func (m *mapIterator[T, U]) Next() bool {
	var zero U
	m.cur = zero
	if m.err != nil || !m.src.Next() {
		return false
	}
	v, err := m.fn(m.src.Value())
	if err != nil {
		m.err = err
		_ = m.src.Close()
		return false
	}
	m.cur = v
	return true
}

func (m *mapIterator[T, U]) Value() U { return m.cur }

func (m *mapIterator[T, U]) Err() error {
	if m.err != nil {
		return m.err
	}
	return m.src.Err()
}

func (m *mapIterator[T, U]) Close() error { return m.src.Close() }

type sliceIterator[T any] struct {
	items []T
	pos   int
}

// FromSlice iterates over items.
func FromSlice[T any](items []T) Iterator[T] {
	return &sliceIterator[T]{items: items, pos: -1}
}

func (s *sliceIterator[T]) Next() bool {
	if s.pos+1 >= len(s.items) {
		s.pos = len(s.items)
		return false
	}
	s.pos++
	return true
}

func (s *sliceIterator[T]) Value() T {
	if s.pos < 0 || s.pos >= len(s.items) {
		var zero T
		return zero
	}
	return s.items[s.pos]
}

func (s *sliceIterator[T]) Err() error   { return nil }
func (s *sliceIterator[T]) Close() error { return nil }

// Collect drains it into a slice and closes it.
func Collect[T any](it Iterator[T]) ([]T, error) {
	defer func() { _ = it.Close() }()
	var out []T
	for it.Next() {
		out = append(out, it.Value())
	}
	return out, it.Err()
}

// All adapts it for use with range. The iterator is closed when the loop
// ends, including on break. A failure is yielded once as the final pair.
func All[T any](it Iterator[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer func() { _ = it.Close() }()
		for it.Next() {
			if !yield(it.Value(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}
