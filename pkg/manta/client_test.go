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
	"crypto/rand"
	"crypto/rsa"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/jobs"
	"github.com/jeremyhahn/go-manta/pkg/mantatest"
	"github.com/jeremyhahn/go-manta/pkg/signer"
	"github.com/jeremyhahn/go-manta/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*Client, *mantatest.Server) {
	t.Helper()
	srv := mantatest.New()
	t.Cleanup(srv.Close)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	sgn, err := signer.NewFromKey(mantatest.DefaultAccount, "", key)
	require.NoError(t, err)

	c, err := New(Config{
		URL:        srv.URL,
		Account:    mantatest.DefaultAccount,
		Signer:     sgn,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, srv
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Account: "a"})
	assert.ErrorIs(t, err, ErrURLRequired)

	_, err = New(Config{URL: "https://example.com"})
	assert.ErrorIs(t, err, ErrAccountRequired)

	_, err = New(Config{URL: "https://example.com", Account: "a"})
	assert.ErrorIs(t, err, signer.ErrMissingKey)

	c, err := New(Config{URL: "https://example.com", Account: "a", Signer: signer.Anonymous{}})
	require.NoError(t, err)
	assert.Equal(t, "/a", c.Home())
	assert.Equal(t, "https://example.com", c.Endpoint())
	assert.NotNil(t, c.Jobs())
	require.NoError(t, c.Close())
}

func TestClient_PutAndGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t)

	om, err := c.PutString(ctx, "~~/stor/hello.txt", "hello world",
		WithContentType("text/plain"),
		WithMetadata(common.Metadata{"color": "blue"}),
		WithDurability(3))
	require.NoError(t, err)
	assert.Equal(t, "/test/stor/hello.txt", om.Path)
	assert.Equal(t, int64(11), om.Size)
	assert.NotEmpty(t, om.ETag)
	assert.NotEmpty(t, om.MD5)

	s, err := c.GetString(ctx, "/test/stor/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", s)

	head, err := c.Head(ctx, "~~/stor/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, common.TypeObject, head.Type)
	assert.Equal(t, int64(11), head.Size)
	assert.Equal(t, "text/plain", head.ContentType)
	assert.Equal(t, 3, head.Durability)
	assert.Equal(t, "blue", head.Metadata.Get("m-color"))
	assert.Equal(t, om.ETag, head.ETag)

	got, err := c.Get(ctx, "~~/stor/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, head.ETag, got.ETag)
}

func TestClient_PutKeepsResponseContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set(common.HeaderContentType, "application/octet-stream")
		w.Header().Set(common.HeaderETag, "etag-1")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{
		URL:        srv.URL,
		Account:    "test",
		Signer:     signer.Anonymous{},
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	om, err := c.PutString(context.Background(), "~~/stor/plain", "data")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", om.ContentType)

	om, err = c.PutString(context.Background(), "~~/stor/typed", "data", WithContentType("text/plain"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", om.ContentType)
}

func TestClient_PutChecksumMismatch(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.PutString(context.Background(), "~~/stor/x", "data", WithContentMD5("AAAAAAAAAAAAAAAAAAAAAA=="))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, common.StatusCode(err))
}

func TestClient_PutUnknownSize(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	r, w := io.Pipe()
	go func() {
		_, _ = w.Write([]byte("streamed"))
		_ = w.Close()
	}()
	_, err := c.Put(ctx, "~~/stor/stream", r, -1)
	require.NoError(t, err)

	data, ok := srv.Store().Data("/test/stor/stream")
	require.True(t, ok)
	assert.Equal(t, "streamed", string(data))
}

func TestClient_GetReaderRejectsDirectory(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.GetReader(context.Background(), "~~/stor")
	assert.ErrorIs(t, err, common.ErrIsDirectory)
}

func TestClient_Exists(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	ok, err := c.Exists(ctx, "~~/stor")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Exists(ctx, "~~/stor/missing")
	require.NoError(t, err)
	assert.False(t, ok)

	srv.Fail(http.MethodHead, "/test/stor/flaky", http.StatusServiceUnavailable, "ServiceUnavailable")
	_, err = c.Exists(ctx, "~~/stor/flaky")
	assert.True(t, common.IsServiceCode(err, common.CodeServiceUnavailable))
}

func TestClient_GetToTempFile(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t)
	_, err := c.PutString(ctx, "~~/stor/file.bin", "payload")
	require.NoError(t, err)

	name, err := c.GetToTempFile(ctx, "~~/stor/file.bin")
	require.NoError(t, err)
	defer os.Remove(name)

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestClient_SeekableReader(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t)
	_, err := c.PutString(ctx, "~~/stor/abc", "abcdefghij")
	require.NoError(t, err)

	r, err := c.SeekableReader(ctx, "~~/stor/abc")
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hij", string(rest))
}

func TestClient_PutMetadata(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)
	_, err := c.PutString(ctx, "~~/stor/m", "x", WithMetadata(common.Metadata{"a": "1"}))
	require.NoError(t, err)

	srv.ResetRequests()
	err = c.PutMetadata(ctx, "~~/stor/m", common.Metadata{"b": "2"}, WithContentMD5("abc"))
	assert.ErrorIs(t, err, common.ErrProtectedHeader)
	err = c.PutMetadata(ctx, "~~/stor/m", common.Metadata{"b": "2"}, WithDurability(1))
	assert.ErrorIs(t, err, common.ErrProtectedHeader)
	assert.Empty(t, srv.Requests())

	require.NoError(t, c.PutMetadata(ctx, "~~/stor/m", common.Metadata{"b": "2"}, WithContentType("text/csv")))
	head, err := c.Head(ctx, "~~/stor/m")
	require.NoError(t, err)
	assert.Equal(t, "2", head.Metadata.Get("m-b"))
	assert.Empty(t, head.Metadata.Get("m-a"))
	assert.Equal(t, "text/csv", head.ContentType)

	s, err := c.GetString(ctx, "~~/stor/m")
	require.NoError(t, err)
	assert.Equal(t, "x", s)
}

func TestClient_ListQualifiesPaths(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t)
	require.NoError(t, c.PutDirectory(ctx, "~~/stor/dir"))
	_, err := c.PutString(ctx, "~~/stor/dir/a", "1")
	require.NoError(t, err)
	require.NoError(t, c.PutDirectory(ctx, "~~/stor/dir/sub"))

	entries, err := c.ListAll(ctx, "~~/stor/dir/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/test/stor/dir/a", entries[0].Path)
	assert.Equal(t, common.TypeObject, entries[0].Type)
	assert.Equal(t, int64(1), entries[0].Size)
	assert.Equal(t, "/test/stor/dir/sub", entries[1].Path)
	assert.True(t, entries[1].IsDirectory())

	_, err = c.List(ctx, "~~/stor/dir/a")
	assert.True(t, common.IsNotADirectory(err))
}

func TestClient_PutDirectoriesSkipsAccountArea(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	require.NoError(t, c.PutDirectories(ctx, "~~/stor/a/b/c"))
	assert.True(t, srv.Store().Exists("/test/stor/a/b/c"))
	assert.Equal(t, 0, srv.CountRequests(http.MethodPut, "/test"))
	assert.Equal(t, 0, srv.CountRequests(http.MethodPut, "/test/stor"))
	assert.Equal(t, 1, srv.CountRequests(http.MethodPut, "/test/stor/a"))
	assert.Equal(t, 1, srv.CountRequests(http.MethodPut, "/test/stor/a/b"))

	err := c.PutDirectory(ctx, "~~/stor/x/y")
	assert.True(t, common.IsNotFound(err))
}

func TestClient_PutSnapLink(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t)
	_, err := c.PutString(ctx, "~~/stor/orig", "v1")
	require.NoError(t, err)

	require.NoError(t, c.PutSnapLink(ctx, "~~/stor/snap", "~~/stor/orig"))
	_, err = c.PutString(ctx, "~~/stor/orig", "v2")
	require.NoError(t, err)

	s, err := c.GetString(ctx, "~~/stor/snap")
	require.NoError(t, err)
	assert.Equal(t, "v1", s)

	err = c.PutSnapLink(ctx, "~~/stor/snap2", "~~/stor/none")
	assert.True(t, common.IsNotFound(err))
}

func TestClient_DeleteRecursive(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)
	require.NoError(t, c.PutDirectories(ctx, "~~/stor/tree/a/b"))
	for _, p := range []string{"~~/stor/tree/f1", "~~/stor/tree/a/f2", "~~/stor/tree/a/b/f3"} {
		_, err := c.PutString(ctx, p, "x")
		require.NoError(t, err)
	}

	require.NoError(t, c.DeleteRecursive(ctx, "~~/stor/tree"))
	assert.False(t, srv.Store().Exists("/test/stor/tree"))
	assert.True(t, srv.Store().Exists("/test/stor"))
}

func TestClient_DeleteRecursiveOnObject(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)
	_, err := c.PutString(ctx, "~~/stor/single", "x")
	require.NoError(t, err)
	srv.ResetRequests()

	require.NoError(t, c.DeleteRecursive(ctx, "~~/stor/single"))
	assert.Equal(t, 1, srv.CountRequests(http.MethodDelete, "/test/stor/single"))
	assert.False(t, srv.Store().Exists("/test/stor/single"))
}

func TestClient_DeleteRecursiveToleratesVanishedDirectory(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)
	require.NoError(t, c.PutDirectory(ctx, "~~/stor/gone"))
	srv.Fail(http.MethodDelete, "/test/stor/gone", http.StatusNotFound, "ResourceNotFound")

	assert.NoError(t, c.DeleteRecursive(ctx, "~~/stor/gone"))

	err := c.DeleteRecursive(ctx, "~~/stor/never")
	assert.True(t, common.IsNotFound(err))
}

func TestClient_SignURI(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)
	_, err := c.PutString(ctx, "~~/stor/shared file", "shared")
	require.NoError(t, err)

	u, err := c.SignURIIn(http.MethodGet, "~~/stor/shared file", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, u.Query().Get("signature"))
	assert.Equal(t, "RSA-SHA256", u.Query().Get("algorithm"))

	resp, err := srv.Client().Get(u.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "shared", string(body))

	_, err = c.SignURIIn(http.MethodGet, "~~/stor/x", 0)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestClient_JobOutputStrings(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t)
	_, err := c.PutString(ctx, "~~/stor/one", "first\n")
	require.NoError(t, err)
	_, err = c.PutString(ctx, "~~/stor/two", "second\n")
	require.NoError(t, err)

	id, err := c.Jobs().Create(ctx, jobs.NewJob("cat", jobs.NewMapPhase("cat")))
	require.NoError(t, err)
	require.NoError(t, c.Jobs().AddInputs(ctx, id, slices.Values([]string{"~~/stor/one", "~~/stor/two"})))
	accepted, err := c.Jobs().EndInput(ctx, id)
	require.NoError(t, err)
	require.True(t, accepted)

	it, err := c.JobOutputStrings(ctx, id)
	require.NoError(t, err)
	outputs, err := stream.Collect(it)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first\n", "second\n"}, outputs)
}

func TestClient_EmptyPath(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.Head(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}
