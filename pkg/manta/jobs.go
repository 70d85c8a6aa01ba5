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

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-manta/pkg/stream"
)

// JobOutputStrings streams the content of every output of job id. Each
// output is fetched as the sequence advances.
func (c *Client) JobOutputStrings(ctx context.Context, id uuid.UUID) (stream.Iterator[string], error) {
	outputs, err := c.jobs.Outputs(ctx, id)
	if err != nil {
		return nil, err
	}
	return stream.Map(outputs, func(p string) (string, error) {
		return c.GetString(ctx, p)
	}), nil
}
