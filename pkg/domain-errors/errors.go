// Package dErrors defines the coded error type services return to transport.
//
// Stores return sentinel errors (pkg/platform/sentinel) describing infrastructure
// facts; services translate those into coded domain errors carrying a caller-safe
// message. Transport maps codes to HTTP statuses via pkg/platform/httputil.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for callers and transport.
type Code string

const (
	// CodeValidation marks missing or malformed input, including
	// type-specific certificate payload checks.
	CodeValidation Code = "validation"
	// CodeBadRequest marks requests that cannot be parsed or are
	// structurally wrong before field validation applies.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks lookups that matched no record.
	CodeNotFound Code = "not_found"
	// CodeConflict marks uniqueness violations: duplicate national IDs,
	// duplicate tax payments, duplicate certificate numbers.
	CodeConflict Code = "conflict"
	// CodePolicyViolation marks operations blocked by registry policy,
	// e.g. identifying a citizen whose application is still pending.
	CodePolicyViolation Code = "policy_violation"
	// CodeInvalidOrExpired marks OTP verification failures. Mismatch and
	// expiry are deliberately indistinguishable to the caller.
	CodeInvalidOrExpired Code = "invalid_or_expired"
	// CodeUnauthorized marks failed authentication.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks authenticated but disallowed access.
	CodeForbidden Code = "forbidden"
	// CodeUnavailable marks a temporarily unreachable backing store.
	// Callers may retry.
	CodeUnavailable Code = "unavailable"
	// CodeInvariantViolation marks a domain invariant broken at
	// construction or transition time. Services usually re-map this to
	// CodeValidation or CodeConflict before returning to transport.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal marks unexpected failures. The message is logged but
	// never surfaced to callers.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Construct with New or Wrap.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with a caller-safe message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted caller-safe message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As inspection and logs.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors so transport never leaks raw failure details.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-safe message from err. Uncoded errors
// yield an empty message.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
