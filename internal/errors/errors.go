// Package errors provides coded application errors shared across the
// service. Codes are stable strings consumed by the HTTP layer and by
// callers that need to branch on failure class.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes.
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeEmptyComment    = "EMPTY_COMMENT"
	ErrCodeAlreadyTerminal = "ALREADY_TERMINAL"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeInternal        = "INTERNAL"
)

// Error is an application error carrying a stable code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error with the given code and message.
func New(code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with the given code and a formatted message.
func Newf(code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message, preserving the cause chain.
func Wrap(err error, code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// NotFound reports that a resource with the given identifier does not exist.
func NotFound(resource, id string) error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// InvalidInput reports a validation failure on a named field.
func InvalidInput(field, message string) error {
	return &Error{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("%s: %s", field, message)}
}

// Code extracts the application error code from err, walking the wrap
// chain. Unknown errors report ErrCodeInternal.
func Code(err error) string {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}

// Message returns the human-readable message without the code prefix.
func Message(err error) string {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
