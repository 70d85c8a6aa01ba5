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

package config

import "errors"

var (
	// ErrURLRequired is returned when no service url is configured.
	ErrURLRequired = errors.New("url is required")

	// ErrUserRequired is returned when no account is configured.
	ErrUserRequired = errors.New("user is required")

	// ErrKeyRequired is returned when neither key-path nor key-content is set.
	ErrKeyRequired = errors.New("key-path or key-content is required")

	// ErrUnsupportedProtocol is returned for an unknown transport protocol.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrUnsupportedOutputFormat is returned for an unknown output format.
	ErrUnsupportedOutputFormat = errors.New("unsupported output format")

	// ErrUnsupportedLogFormat is returned for an unknown log format.
	ErrUnsupportedLogFormat = errors.New("unsupported log format")
)
