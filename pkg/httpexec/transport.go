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
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-manta/pkg/adapters"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// ErrInvalidProtocol is returned for an unknown transport protocol.
var ErrInvalidProtocol = errors.New("invalid protocol")

// Transport sends a single HTTP request. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Protocol selects the wire protocol used to reach the service.
type Protocol string

const (
	// ProtocolHTTP uses HTTP/1.1 with HTTP/2 negotiated over TLS.
	ProtocolHTTP Protocol = "http"

	// ProtocolHTTP3 uses HTTP/3 over QUIC.
	ProtocolHTTP3 Protocol = "http3"
)

// TransportConfig holds connection level settings.
type TransportConfig struct {
	Protocol Protocol

	// TLS settings; nil uses the defaults of adapters.NewTLSConfig.
	TLS *adapters.TLSConfig

	// Timeouts. There is no overall request timeout because object bodies
	// may legitimately stream for a long time; use a context deadline.
	ConnectTimeout        time.Duration
	ResponseHeaderTimeout time.Duration
	IdleTimeout           time.Duration

	// MaxIdleConnsPerHost bounds the connection pool.
	MaxIdleConnsPerHost int
}

// DefaultTransportConfig returns the settings used when none are given.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Protocol:              ProtocolHTTP,
		ConnectTimeout:        10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleTimeout:           90 * time.Second,
		MaxIdleConnsPerHost:   24,
	}
}

// NewHTTPClient builds an *http.Client for cfg.Protocol.
func NewHTTPClient(cfg TransportConfig) (*http.Client, error) {
	tlsCfg := adapters.NewTLSConfig()
	if cfg.TLS != nil {
		// Copied so that ALPN defaults never leak into the caller's config.
		c := *cfg.TLS
		tlsCfg = &c
	}

	switch cfg.Protocol {
	case ProtocolHTTP, "":
		tc, err := tlsCfg.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:       tc,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
			IdleConnTimeout:       cfg.IdleTimeout,
			MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
			ForceAttemptHTTP2:     true,
		}
		return &http.Client{Transport: transport, CheckRedirect: noRedirect}, nil

	case ProtocolHTTP3:
		if len(tlsCfg.NextProtos) == 0 {
			tlsCfg.WithNextProtos(http3.NextProtoH3)
		}
		tc, err := tlsCfg.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		quicConfig := &quic.Config{
			HandshakeIdleTimeout: cfg.ConnectTimeout,
			MaxIdleTimeout:       cfg.IdleTimeout,
			KeepAlivePeriod:      cfg.IdleTimeout / 2,
		}
		transport := &http3.Transport{
			TLSClientConfig: tc,
			QUICConfig:      quicConfig,
		}
		return &http.Client{Transport: transport, CheckRedirect: noRedirect}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidProtocol, cfg.Protocol)
	}
}

// noRedirect hands 3xx responses back to the caller. Snaplink and job
// creation report the new resource in the Location header.
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
