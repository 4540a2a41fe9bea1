// Package api implements the HTTP client for the coaching backend. This
// file centralizes the client-side error taxonomy so callers can classify
// failures without string matching:
//
//   - NetworkError: the request never produced a usable response (dial,
//     timeout, connection reset).
//   - ServerError: the backend answered with a non-2xx status.
//   - ParseError: the response body was not the JSON we expected.
//   - ValidationError: a remote record is missing required fields.
//
// The poller treats every kind as "no update this cycle"; the reconciler
// aborts on NetworkError/ServerError and skips single records on
// ParseError/ValidationError. That policy lives with the callers — this
// package only classifies.
package api

import (
	"errors"
	"fmt"
)

// NetworkError wraps a transport-level failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("api: %s: %v", e.Op, e.Err) }

// Unwrap exposes the transport error for errors.Is chains.
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError reports a non-2xx backend response.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("api: server returned %d: %s", e.Status, e.Body)
}

// ParseError wraps a JSON decode failure.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("api: malformed response: %v", e.Err) }

// Unwrap exposes the decode error.
func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a remote record that cannot be used.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("api: invalid record: %s %s", e.Field, e.Reason)
}

// IsRecordError reports whether err only affects a single record
// (ParseError or ValidationError), as opposed to the whole exchange.
func IsRecordError(err error) bool {
	var pe *ParseError
	var ve *ValidationError
	return errors.As(err, &pe) || errors.As(err, &ve)
}

// IsTransportError reports whether err invalidates the whole exchange
// (NetworkError or ServerError).
func IsTransportError(err error) bool {
	var ne *NetworkError
	var se *ServerError
	return errors.As(err, &ne) || errors.As(err, &se)
}
