// Package errors provides error handling for langgate.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//   - Network portability for distributed systems
//   - Sentry integration
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "try increasing the timeout")
//
//	// Check errors
//	if errors.Is(err, errors.ErrUnsupportedLanguage) {
//	    // handle unsupported language
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSafeDetails    = crdb.WithSafeDetails
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	Mark          = crdb.Mark
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapOnce    = crdb.UnwrapOnce
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Assertions and panics
var (
	AssertionFailedf                 = crdb.AssertionFailedf
	NewAssertionErrorWithWrappedErrf = crdb.NewAssertionErrorWithWrappedErrf
)

// Sentinel errors for the language-server lifecycle and the gateway.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrPathNotFound indicates the requested file path does not exist
	ErrPathNotFound = New("path not found")

	// ErrUnsupportedLanguage indicates no adapter implementation exists for the language
	ErrUnsupportedLanguage = New("unsupported language")

	// ErrUnrecognizedLanguage indicates the language is not understood even for routing
	ErrUnrecognizedLanguage = New("unrecognized language")

	// ErrProcessSpawn indicates the analyzer executable could not be launched
	ErrProcessSpawn = New("process spawn failed")

	// ErrDisconnected indicates the analyzer process connection is gone
	ErrDisconnected = New("connection disconnected")

	// ErrPortBindFailure indicates no candidate port could be bound
	ErrPortBindFailure = New("port bind failure")

	// ErrResponseParse indicates a response from the analyzer could not be decoded
	ErrResponseParse = New("response parse error")
)

// RemoteError carries a JSON-RPC error object returned by the analyzer.
// The code and message are the analyzer's own, passed through verbatim.
type RemoteError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote protocol error %d: %s", e.Code, e.Message)
}

// IsRemoteError reports whether err is or wraps a *RemoteError,
// returning the remote error when present.
func IsRemoteError(err error) (*RemoteError, bool) {
	var remote *RemoteError
	if err != nil && As(err, &remote) {
		return remote, true
	}
	return nil, false
}
