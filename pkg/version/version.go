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

package version

import (
	"fmt"
	"runtime"
)

// Version is the client version.
// This should be set at build time using:
//
//	go build -ldflags "-X github.com/jeremyhahn/go-manta/pkg/version.Version=1.0.0"
var Version = "0.1.0-alpha"

// Get returns the client version string.
func Get() string {
	return Version
}

// UserAgent returns the User-Agent header sent with every request.
func UserAgent() string {
	return fmt.Sprintf("go-manta/%s (%s; %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
