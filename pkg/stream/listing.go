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

package stream

import (
	"io"

	"github.com/jeremyhahn/go-manta/pkg/common"
)

// ParseDirectory returns the entries of a directory listing body. Every
// entry path is qualified with dir. A response that is not a directory
// listing is released and reported as *common.NotADirectoryError before
// any line is read. A malformed line ends the sequence with
// *common.DecodeError.
func ParseDirectory(dir, contentType string, body io.ReadCloser) (Iterator[*common.ObjectMetadata], error) {
	if !common.IsDirectoryContentType(contentType) {
		if a, ok := body.(aborter); ok {
			_ = a.Abort()
		} else {
			_ = body.Close()
		}
		return nil, &common.NotADirectoryError{Path: dir, ContentType: contentType}
	}

	decode := func(line []byte) (*common.ObjectMetadata, bool, error) {
		om, err := common.DecodeListingEntry(dir, line)
		if err != nil {
			return nil, false, err
		}
		return om, true, nil
	}
	return NewLineIterator(dir, body, decode), nil
}
