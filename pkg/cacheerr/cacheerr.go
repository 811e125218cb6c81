// Package cacheerr provides the structured error codes used by the caching
// subsystem. Callers branch on the code, not the message.
package cacheerr

import (
	"errors"
	"fmt"
)

// Code classifies a cache error.
type Code string

const (
	// CodeInvalidArtifactID marks a malformed artifact identifier. The
	// check runs before any storage lookup.
	CodeInvalidArtifactID Code = "INVALID_ARTIFACT_ID"

	// CodeArtifactNotFound marks an artifact that is absent from the
	// index, or discovered absent during a racing read.
	CodeArtifactNotFound Code = "ARTIFACT_NOT_FOUND"

	// CodeSessionMismatch marks a cross-session access attempt. This is a
	// security rejection and is raised before any content is read.
	CodeSessionMismatch Code = "SESSION_MISMATCH"

	// CodeCacheUnavailable marks an operation against a cache that is
	// disabled or failed to initialize.
	CodeCacheUnavailable Code = "CACHE_UNAVAILABLE"
)

// Error is a cache error with a stable code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so errors.Is(err, cacheerr.New(code, ""))
// style sentinels work across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error that carries an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from an error chain. It returns the empty code
// when the chain carries no *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
