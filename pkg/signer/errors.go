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

package signer

import "errors"

var (
	ErrMissingAccount     = errors.New("signer: account is required")
	ErrMissingKey         = errors.New("signer: private key path or content is required")
	ErrPassphraseRequired = errors.New("signer: private key is encrypted and no passphrase was given")
	ErrUnsupportedKey     = errors.New("signer: unsupported private key type")
	ErrKeyMismatch        = errors.New("signer: key id does not match the private key fingerprint")
	ErrAnonymous          = errors.New("signer: anonymous signer cannot sign URLs")
)
