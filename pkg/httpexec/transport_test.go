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

package httpexec

import (
	"net/http"
	"testing"

	"github.com/jeremyhahn/go-manta/pkg/adapters"
	"github.com/quic-go/quic-go/http3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	client, err := NewHTTPClient(DefaultTransportConfig())
	require.NoError(t, err)
	tr, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 24, tr.MaxIdleConnsPerHost)
	assert.True(t, tr.ForceAttemptHTTP2)
	assert.Zero(t, client.Timeout)
}

func TestNewHTTP3Client(t *testing.T) {
	cfg := DefaultTransportConfig()
	cfg.Protocol = ProtocolHTTP3

	client, err := NewHTTPClient(cfg)
	require.NoError(t, err)
	tr, ok := client.Transport.(*http3.Transport)
	require.True(t, ok)
	assert.Equal(t, []string{http3.NextProtoH3}, tr.TLSClientConfig.NextProtos)
	assert.Equal(t, cfg.IdleTimeout, tr.QUICConfig.MaxIdleTimeout)
}

func TestNewHTTP3ClientLeavesCallerTLSConfigUntouched(t *testing.T) {
	tlsCfg := adapters.NewTLSConfig().WithInsecureSkipVerify(true)
	cfg := DefaultTransportConfig()
	cfg.Protocol = ProtocolHTTP3
	cfg.TLS = tlsCfg

	_, err := NewHTTPClient(cfg)
	require.NoError(t, err)
	assert.Empty(t, tlsCfg.NextProtos)

	cfg.Protocol = ProtocolHTTP
	client, err := NewHTTPClient(cfg)
	require.NoError(t, err)
	tr, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotContains(t, tr.TLSClientConfig.NextProtos, http3.NextProtoH3)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestNewHTTPClientInvalidProtocol(t *testing.T) {
	cfg := DefaultTransportConfig()
	cfg.Protocol = "carrier-pigeon"
	_, err := NewHTTPClient(cfg)
	assert.ErrorIs(t, err, ErrInvalidProtocol)
}

func TestNoRedirect(t *testing.T) {
	assert.ErrorIs(t, noRedirect(nil, nil), http.ErrUseLastResponse)
}
