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

package adapters

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
)

var (
	// ErrInvalidCertificate is returned when a client certificate is invalid.
	ErrInvalidCertificate = errors.New("invalid certificate")

	// ErrInvalidCAPool is returned when the CA pool is invalid.
	ErrInvalidCAPool = errors.New("invalid CA pool")
)

// TLSConfig holds the client side TLS settings used to reach the service.
type TLSConfig struct {
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string

	// CAPEM is an alternative to CAFile.
	CAPEM []byte

	// CertFile and KeyFile present a client certificate when the endpoint
	// sits behind a proxy that requires one.
	CertFile string
	KeyFile  string

	// ServerName overrides the name used for verification.
	ServerName string

	// MinVersion specifies the minimum TLS version (default: TLS 1.2).
	MinVersion uint16

	// NextProtos sets the ALPN protocols. HTTP/3 requires "h3".
	NextProtos []string

	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool
}

// NewTLSConfig creates a TLS configuration with secure defaults.
func NewTLSConfig() *TLSConfig {
	return &TLSConfig{MinVersion: tls.VersionTLS12}
}

// WithCAFile trusts the certificates in caFile.
func (c *TLSConfig) WithCAFile(caFile string) *TLSConfig {
	c.CAFile = caFile
	return c
}

// WithCAPEM trusts the certificates in caPEM.
func (c *TLSConfig) WithCAPEM(caPEM []byte) *TLSConfig {
	c.CAPEM = caPEM
	return c
}

// WithClientCertFiles presents the given client certificate.
func (c *TLSConfig) WithClientCertFiles(certFile, keyFile string) *TLSConfig {
	c.CertFile = certFile
	c.KeyFile = keyFile
	return c
}

// WithInsecureSkipVerify disables server certificate verification (use with caution).
func (c *TLSConfig) WithInsecureSkipVerify(skip bool) *TLSConfig {
	c.InsecureSkipVerify = skip
	return c
}

// WithNextProtos sets the ALPN protocol list.
func (c *TLSConfig) WithNextProtos(protos ...string) *TLSConfig {
	c.NextProtos = protos
	return c
}

// Build creates a *tls.Config from the TLSConfig.
func (c *TLSConfig) Build() (*tls.Config, error) {
	minVersion := c.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}
	config := &tls.Config{
		MinVersion:         minVersion,
		ServerName:         c.ServerName,
		NextProtos:         c.NextProtos,
		InsecureSkipVerify: c.InsecureSkipVerify, // #nosec G402 -- opt-in for development endpoints
	}

	caData := c.CAPEM
	if len(caData) == 0 && c.CAFile != "" {
		data, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, ErrInvalidCAPool
		}
		caData = data
	}
	if len(caData) > 0 {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(caData) {
			return nil, ErrInvalidCAPool
		}
		config.RootCAs = pool
	}

	if c.CertFile != "" || c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, ErrInvalidCertificate
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}
