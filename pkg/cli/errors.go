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

package cli

import "errors"

var (
	// ErrJobNotFinished is returned when a wait gives up before the job is done.
	ErrJobNotFinished = errors.New("job did not finish in time")

	// ErrNoPhases is returned when a job is created without any phase.
	ErrNoPhases = errors.New("at least one --map or --reduce phase is required")
)
