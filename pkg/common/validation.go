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

package common

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum allowed length for remote paths
	MaxPathLength = 1024

	// MaxMetadataKeyLength is the maximum allowed length for metadata keys
	MaxMetadataKeyLength = 256

	// MaxMetadataValueLength is the maximum allowed length for metadata values
	MaxMetadataValueLength = 4096
)

// protectedHeaders may not be changed by a metadata-only update.
var protectedHeaders = []string{
	HeaderContentLength,
	HeaderContentMD5,
	HeaderDurabilityLevel,
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap lets callers match validation failures against ErrInvalidArgument.
func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// ValidatePath checks a remote path before it is sent to the service.
// Returns error if the path:
// - Is empty
// - Exceeds maximum length
// - Contains null bytes or line breaks
// - Is not valid UTF-8
func ValidatePath(p string) error {
	if p == "" {
		return &ValidationError{Field: "path", Message: "path cannot be empty"}
	}
	if len(p) > MaxPathLength {
		return &ValidationError{
			Field:   "path",
			Message: fmt.Sprintf("path length exceeds maximum of %d bytes", MaxPathLength),
		}
	}
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '\x00':
			return &ValidationError{Field: "path", Message: "path cannot contain null bytes"}
		case '\n', '\r':
			return &ValidationError{
				Field:   "path",
				Message: fmt.Sprintf("path contains invalid character sequence: %q", string(p[i])),
			}
		}
	}
	if !utf8.ValidString(p) {
		return &ValidationError{Field: "path", Message: "path must be valid UTF-8"}
	}
	return nil
}

// ValidateMetadata validates user metadata before it is rendered as headers.
func ValidateMetadata(metadata Metadata) error {
	for key, value := range metadata {
		if key == "" {
			return &ValidationError{Field: "metadata.key", Message: "metadata key cannot be empty"}
		}
		if len(key) > MaxMetadataKeyLength {
			return &ValidationError{
				Field:   "metadata.key",
				Message: fmt.Sprintf("metadata key '%s' exceeds maximum length of %d bytes", key, MaxMetadataKeyLength),
			}
		}
		if strings.ContainsAny(key, " \t\r\n:\x00") {
			return &ValidationError{
				Field:   "metadata.key",
				Message: fmt.Sprintf("metadata key '%s' is not a valid header name", key),
			}
		}
		if len(value) > MaxMetadataValueLength {
			return &ValidationError{
				Field:   "metadata.value",
				Message: fmt.Sprintf("metadata value for key '%s' exceeds maximum length of %d bytes", key, MaxMetadataValueLength),
			}
		}
		if strings.ContainsAny(value, "\r\n\x00") {
			return &ValidationError{
				Field:   "metadata.value",
				Message: "metadata value cannot contain line breaks or null bytes",
			}
		}
	}
	return nil
}

// ValidateMetadataUpdate rejects headers that a metadata-only update cannot
// change.
func ValidateMetadataUpdate(h http.Header) error {
	for _, name := range protectedHeaders {
		if h.Get(name) != "" {
			return fmt.Errorf("%w: %s", ErrProtectedHeader, name)
		}
	}
	return nil
}
