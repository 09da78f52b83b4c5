// Package errs provides the typed error taxonomy shared by all gateway
// components. Errors carry a machine-readable code, the name of the
// dependency that produced them, and an optional retry-after hint so
// callers can decide whether backing off and retrying is worthwhile.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies an error for protocol-level handling.
type Code string

const (
	// CodeValidation indicates missing or malformed input. Never retried.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeDependency indicates an external provider or database failure
	// after local retries were exhausted.
	CodeDependency Code = "DEPENDENCY_ERROR"
	// CodePermission indicates an operation disallowed under the current
	// configuration, e.g. a mutation on a read-only instance.
	CodePermission Code = "PERMISSION_ERROR"
	// CodeProtocol indicates a malformed frame or unknown tool name.
	CodeProtocol Code = "PROTOCOL_ERROR"
	// CodeTimeout indicates a per-call deadline expired. The underlying
	// work may still complete server-side; its result is discarded.
	CodeTimeout Code = "TIMEOUT"
	// CodeConfig indicates invalid startup configuration. Fatal.
	CodeConfig Code = "CONFIG_ERROR"
)

// Error is the gateway error type. It wraps an optional cause and is
// compatible with errors.Is/errors.As.
type Error struct {
	Code       Code
	Service    string
	Message    string
	RetryAfter *time.Duration
	Details    string
	err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// Validation creates a VALIDATION_ERROR.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Permission creates a PERMISSION_ERROR.
func Permission(format string, args ...any) *Error {
	return &Error{Code: CodePermission, Message: fmt.Sprintf(format, args...)}
}

// Protocol creates a PROTOCOL_ERROR.
func Protocol(format string, args ...any) *Error {
	return &Error{Code: CodeProtocol, Message: fmt.Sprintf(format, args...)}
}

// Config creates a CONFIG_ERROR.
func Config(format string, args ...any) *Error {
	return &Error{Code: CodeConfig, Message: fmt.Sprintf(format, args...)}
}

// Timeout creates a TIMEOUT error for the named service.
func Timeout(service string, d time.Duration) *Error {
	return &Error{
		Code:    CodeTimeout,
		Service: service,
		Message: fmt.Sprintf("call exceeded deadline of %s", d),
	}
}

// Dependency wraps an external failure from the named service. A nil
// retryAfter means the caller has no hint and should use its own backoff.
func Dependency(service string, retryAfter *time.Duration, err error) *Error {
	e := &Error{
		Code:       CodeDependency,
		Service:    service,
		Message:    fmt.Sprintf("%s unavailable", service),
		RetryAfter: retryAfter,
		err:        err,
	}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// WithDetails returns a copy of e with the details string set.
func (e *Error) WithDetails(details string) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// CodeOf extracts the taxonomy code from any error. Unknown errors map
// to DEPENDENCY_ERROR: by the time an unclassified error reaches the
// protocol boundary it came from something external.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeDependency
}

// IsTransient reports whether retrying the failed call may succeed.
// Validation, permission, protocol and config errors are never transient.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case CodeDependency, CodeTimeout:
		return true
	default:
		return false
	}
}

// RetryAfterOf returns the retry-after hint carried by err, or nil.
func RetryAfterOf(err error) *time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return nil
}
