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

// Package manta is the high level client. It ties the signer, the request
// executor, listing parser, seekable reader and job orchestrator together
// behind one type.
package manta

import (
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-manta/pkg/adapters"
	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/httpexec"
	"github.com/jeremyhahn/go-manta/pkg/jobs"
	"github.com/jeremyhahn/go-manta/pkg/signer"
)

var (
	ErrURLRequired     = errors.New("manta: service url is required")
	ErrAccountRequired = errors.New("manta: account is required")
)

// Config configures a Client.
type Config struct {
	URL     string
	Account string
	Subuser string

	// Key material used to build a signer.KeySigner when Signer is nil.
	KeyID      string
	KeyPath    string
	KeyContent string
	Passphrase string

	// Signer overrides the key settings.
	Signer signer.Signer

	// Transport configures the connection. HTTPClient, when set, is used
	// as is and Transport is ignored.
	Transport  httpexec.TransportConfig
	HTTPClient httpexec.Transport

	RequestsPerSecond float64
	Burst             int

	Logger adapters.Logger
}

// Client is safe for concurrent use.
type Client struct {
	exec   *httpexec.Executor
	jobs   *jobs.Orchestrator
	home   string
	logger adapters.Logger
	now    func() time.Time
	idle   interface{ CloseIdleConnections() }
}

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrURLRequired
	}
	if cfg.Account == "" {
		return nil, ErrAccountRequired
	}
	logger := cfg.Logger
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}

	sgn := cfg.Signer
	if sgn == nil {
		ks, err := signer.New(signer.Config{
			Account:    cfg.Account,
			Subuser:    cfg.Subuser,
			KeyID:      cfg.KeyID,
			KeyPath:    cfg.KeyPath,
			KeyContent: cfg.KeyContent,
			Passphrase: cfg.Passphrase,
		})
		if err != nil {
			return nil, fmt.Errorf("manta: %w", err)
		}
		sgn = ks
	}

	c := &Client{
		home:   "/" + cfg.Account,
		logger: logger,
		now:    time.Now,
	}

	transport := cfg.HTTPClient
	if transport == nil {
		tc := cfg.Transport
		if tc.Protocol == "" {
			defaults := httpexec.DefaultTransportConfig()
			defaults.TLS = tc.TLS
			tc = defaults
		}
		client, err := httpexec.NewHTTPClient(tc)
		if err != nil {
			return nil, fmt.Errorf("manta: %w", err)
		}
		transport = client
		c.idle = client
	}

	exec, err := httpexec.New(httpexec.Config{
		Endpoint:          cfg.URL,
		Signer:            sgn,
		Transport:         transport,
		Logger:            logger,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("manta: %w", err)
	}
	c.exec = exec
	c.jobs = jobs.New(exec, c.home, logger)
	return c, nil
}

// Home returns the account's home directory, e.g. "/alice".
func (c *Client) Home() string {
	return c.home
}

// Endpoint returns the service URL.
func (c *Client) Endpoint() string {
	return c.exec.Endpoint()
}

// Jobs returns the job orchestrator bound to this client.
func (c *Client) Jobs() *jobs.Orchestrator {
	return c.jobs
}

// Close releases idle connections held by a transport the client built.
func (c *Client) Close() error {
	if c.idle != nil {
		c.idle.CloseIdleConnections()
	}
	return nil
}

// resolve expands the home alias and normalizes p.
func (c *Client) resolve(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: path is required", common.ErrInvalidArgument)
	}
	return common.NormalizePath(common.ExpandHome(p, c.home)), nil
}
