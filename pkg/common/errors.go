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
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidArgument is returned when a required argument is missing or malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIsDirectory is returned when object data is requested from a directory.
	ErrIsDirectory = errors.New("directories do not have data")

	// ErrProtectedHeader is returned when a metadata update tries to change a
	// header the service does not allow to be modified.
	ErrProtectedHeader = errors.New("critical header can't be changed")

	// ErrClosed is returned when a closed reader or iterator is used.
	ErrClosed = errors.New("resource already closed")
)

// ServiceCode is the closed set of error codes reported by the service.
type ServiceCode string

const (
	// CodeResourceNotFound means the addressed resource does not exist.
	CodeResourceNotFound ServiceCode = "RESOURCE_NOT_FOUND_ERROR"

	// CodeInvalidArgument means the request was rejected as malformed.
	CodeInvalidArgument ServiceCode = "INVALID_ARGUMENT_ERROR"

	// CodeServiceUnavailable means the service could not handle the request.
	CodeServiceUnavailable ServiceCode = "SERVICE_UNAVAILABLE_ERROR"

	// CodeAuthentication means the request signature or credentials were refused.
	CodeAuthentication ServiceCode = "AUTHENTICATION_ERROR"

	// CodeUnknown is used for any code outside the known set.
	CodeUnknown ServiceCode = "UNKNOWN_ERROR"
)

// wireCodes maps the codes found in error bodies to a ServiceCode.
var wireCodes = map[string]ServiceCode{
	"ResourceNotFound":             CodeResourceNotFound,
	"DirectoryDoesNotExist":        CodeResourceNotFound,
	"LinkNotFound":                 CodeResourceNotFound,
	"SourceObjectNotFound":         CodeResourceNotFound,
	"InvalidArgument":              CodeInvalidArgument,
	"InvalidJob":                   CodeInvalidArgument,
	"InvalidParameter":             CodeInvalidArgument,
	"InvalidUpdate":                CodeInvalidArgument,
	"ServiceUnavailable":           CodeServiceUnavailable,
	"InternalError":                CodeServiceUnavailable,
	"InvalidCredentials":           CodeAuthentication,
	"InvalidSignature":             CodeAuthentication,
	"InvalidKeyId":                 CodeAuthentication,
	"AuthorizationFailed":          CodeAuthentication,
	"AuthSchemeError":              CodeAuthentication,
	"KeyDoesNotExist":              CodeAuthentication,
	"RequestedRangeNotSatisfiable": CodeInvalidArgument,

	string(CodeResourceNotFound):   CodeResourceNotFound,
	string(CodeInvalidArgument):    CodeInvalidArgument,
	string(CodeServiceUnavailable): CodeServiceUnavailable,
	string(CodeAuthentication):     CodeAuthentication,
	string(CodeUnknown):            CodeUnknown,
}

// ParseServiceCode converts a wire error code into a ServiceCode. When the
// code is empty the HTTP status is used to infer the closest match.
func ParseServiceCode(wire string, status int) ServiceCode {
	if code, ok := wireCodes[wire]; ok {
		return code
	}
	if wire != "" {
		return CodeUnknown
	}
	switch status {
	case http.StatusNotFound:
		return CodeResourceNotFound
	case http.StatusBadRequest, http.StatusRequestedRangeNotSatisfiable:
		return CodeInvalidArgument
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeAuthentication
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return CodeServiceUnavailable
	default:
		return CodeUnknown
	}
}

// RemoteResponseError is returned for any response with a failure status.
type RemoteResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Code       ServiceCode
	// ServerCode is the raw code as sent by the service.
	ServerCode string
	Message    string
	RequestID  string
}

func (e *RemoteResponseError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d %s: %s", e.Method, e.Path, e.StatusCode, e.Code, msg)
}

// AuthenticationError is returned when a request could not be signed.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("unable to sign request: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ConnectionError is returned when the transport failed before a response
// was obtained.
type ConnectionError struct {
	Method string
	URL    string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotADirectoryError is returned when a listing is requested for a path that
// is not a directory.
type NotADirectoryError struct {
	Path        string
	ContentType string
}

func (e *NotADirectoryError) Error() string {
	return fmt.Sprintf("%s is not a directory (content-type %q)", e.Path, e.ContentType)
}

// DecodeError is returned when a record could not be decoded.
type DecodeError struct {
	Path string
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decode %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// OutOfRangeError is returned for an invalid seek target.
type OutOfRangeError struct {
	Position int64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("position %d is out of range", e.Position)
}

// IsServiceCode reports whether err is a RemoteResponseError with the given code.
func IsServiceCode(err error, code ServiceCode) bool {
	var rre *RemoteResponseError
	return errors.As(err, &rre) && rre.Code == code
}

// IsNotFound reports whether err is a RESOURCE_NOT_FOUND response.
func IsNotFound(err error) bool {
	return IsServiceCode(err, CodeResourceNotFound)
}

// IsNotADirectory reports whether err is a NotADirectoryError.
func IsNotADirectory(err error) bool {
	var nde *NotADirectoryError
	return errors.As(err, &nde)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var rre *RemoteResponseError
	if errors.As(err, &rre) {
		return rre.StatusCode
	}
	return 0
}
