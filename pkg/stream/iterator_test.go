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

package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// body records how it was released.
type body struct {
	io.Reader
	closes int
	aborts int
	reads  int
}

func newBody(s string) *body {
	return &body{Reader: strings.NewReader(s)}
}

func (b *body) Read(p []byte) (int, error) {
	b.reads++
	return b.Reader.Read(p)
}

func (b *body) Close() error {
	b.closes++
	return nil
}

func (b *body) Abort() error {
	b.aborts++
	return nil
}

func (b *body) released() int { return b.closes + b.aborts }

// failingReader returns data then a transport error.
type failingReader struct {
	data string
	err  error
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, f.err
	}
	f.done = true
	return copy(p, f.data), nil
}

func TestLineIterator(t *testing.T) {
	b := newBody("one\n\n  two  \nthree")
	it := NewLineIterator("/p", b, Lines)

	got, err := Collect(it)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)
	assert.Equal(t, 1, b.released())
}

func TestLineIteratorSkip(t *testing.T) {
	decode := func(line []byte) (string, bool, error) {
		if strings.HasPrefix(string(line), "#") {
			return "", false, nil
		}
		return string(line), true, nil
	}
	got, err := Collect(NewLineIterator("/p", newBody("#c\na\n#d\nb\n"), decode))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestLineIteratorDecodeError(t *testing.T) {
	type rec struct {
		N int `json:"n"`
	}
	b := newBody("{\"n\":1}\n{\"n\":\n{\"n\":3}\n")
	it := NewLineIterator("/p", b, JSON[rec]())

	require.True(t, it.Next())
	assert.Equal(t, 1, it.Value().N)
	assert.False(t, it.Next())

	var de *common.DecodeError
	require.True(t, errors.As(it.Err(), &de))
	assert.Equal(t, 2, de.Line)
	assert.Equal(t, "/p", de.Path)
	assert.Equal(t, 1, b.aborts, "a failed sequence must drop the connection")

	assert.False(t, it.Next(), "a failed sequence stays failed")
	require.NoError(t, it.Close())
	assert.Equal(t, 1, b.released())
}

func TestLineIteratorReadError(t *testing.T) {
	cause := errors.New("connection reset")
	rc := &struct {
		io.Reader
		io.Closer
	}{&failingReader{data: "a\nb", err: cause}, io.NopCloser(nil)}

	it := NewLineIterator[string]("/p", rc, Lines)
	require.True(t, it.Next())
	assert.Equal(t, "a", it.Value())
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), cause)
}

func TestLineIteratorEarlyClose(t *testing.T) {
	b := newBody("a\nb\nc\n")
	it := NewLineIterator("/p", b, Lines)

	require.True(t, it.Next())
	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
	assert.False(t, it.Next())
	assert.Equal(t, 1, b.aborts)
	assert.Equal(t, 0, b.closes)
}

func TestLineIteratorIsLazy(t *testing.T) {
	b := newBody("a\n")
	it := NewLineIterator("/p", b, Lines)
	assert.Equal(t, 0, b.reads, "nothing is read before Next")
	_ = it.Close()
}

func TestMap(t *testing.T) {
	src := NewLineIterator("/p", newBody("1\n2\n3\n"), Lines)
	it := Map(src, func(s string) (string, error) { return s + s, nil })

	got, err := Collect(it)
	require.NoError(t, err)
	assert.Equal(t, []string{"11", "22", "33"}, got)
}

func TestMapError(t *testing.T) {
	b := newBody("1\n2\n3\n")
	boom := errors.New("boom")
	it := Map(NewLineIterator("/p", b, Lines), func(s string) (int, error) {
		if s == "2" {
			return 0, boom
		}
		return len(s), nil
	})

	got, err := Collect(it)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, got)
	assert.Equal(t, 1, b.released())
}

func TestAll(t *testing.T) {
	b := newBody("a\nb\nc\n")
	var got []string
	for v, err := range All(NewLineIterator("/p", b, Lines)) {
		require.NoError(t, err)
		got = append(got, v)
		if v == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, b.aborts, "breaking out of the loop closes the iterator")
}

func TestAllYieldsError(t *testing.T) {
	var errs []error
	for _, err := range All(NewLineIterator("/p", newBody("{\n"), JSON[map[string]any]())) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	require.Len(t, errs, 1)
	var de *common.DecodeError
	assert.True(t, errors.As(errs[0], &de))
}

func TestFromSlice(t *testing.T) {
	it := FromSlice([]int{1, 2})
	assert.Equal(t, 0, it.Value())
	got, err := Collect(it)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
	assert.False(t, it.Next())
	assert.Equal(t, 0, it.Value())
}
