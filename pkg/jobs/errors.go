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

package jobs

import "errors"

var (
	// ErrInvalidJob is returned when a job description cannot be submitted.
	ErrInvalidJob = errors.New("invalid job")

	// ErrMissingLocation is returned when job creation does not report the
	// new job's location.
	ErrMissingLocation = errors.New("job creation response has no location")

	// ErrInvalidJobID is returned for a nil job identifier.
	ErrInvalidJobID = errors.New("invalid job id")
)
