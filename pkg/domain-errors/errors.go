// Package domainerrors provides coded errors that services return across
// package boundaries. Handlers translate codes into HTTP responses; stores
// return sentinel errors and services wrap them with a code here.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and branching.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_failed"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeMissingConsent     Code = "missing_consent"
	CodeInvalidConsent     Code = "invalid_consent"
	CodeDecryptionFailed   Code = "decryption_failed"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error carries a code and a human-readable message. The wrapped cause, if
// any, is preserved for errors.Is/As but never rendered to callers.
type Error struct {
	code    Code
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the classification of this error.
func (e *Error) Code() Code { return e.code }

// Message returns the human-readable message without the code prefix.
func (e *Error) Message() string { return e.message }

// New constructs a coded error with a message.
func New(code Code, message string) error {
	return &Error{code: code, message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	return &Error{code: code, message: message, cause: err}
}

// Wrapf attaches a code and formatted message to an underlying cause.
func Wrapf(err error, code Code, format string, args ...any) error {
	return &Error{code: code, message: fmt.Sprintf(format, args...), cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal for
// unclassified errors so unknown failures never leak details outward.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.code
	}
	return CodeInternal
}

// MessageOf extracts the message from err without the wrapped cause.
func MessageOf(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.message
	}
	return "internal error"
}
