package errors

import (
	"errors"
	"fmt"
)

// Error provides a structured error carrying a stable machine-readable code.
type Error struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Internal error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches two Errors by code so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

// WithInternal returns a copy of the Error with an attached internal error.
func (e *Error) WithInternal(err error) *Error {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Common errors exposed to the rest of the library.
var (
	ErrInvalidArgument = &Error{
		Code:    "INVALID_ARGUMENT",
		Message: "Invalid argument",
	}

	ErrLockTimeout = &Error{
		Code:    "LOCK_TIMEOUT",
		Message: "Distributed lock not acquired within timeout",
	}

	ErrStoreUnavailable = &Error{
		Code:    "STORE_UNAVAILABLE",
		Message: "Backing store unavailable",
	}
)

// New builds a new error with the provided metadata.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap turns any error into a store-unavailable Error while keeping the original for logging.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:     ErrStoreUnavailable.Code,
		Message:  message,
		Internal: err,
	}
}

// NewInvalidArgument wraps validation failures with a helpful message.
func NewInvalidArgument(message string) *Error {
	return &Error{
		Code:    ErrInvalidArgument.Code,
		Message: message,
	}
}

// FromError converts a generic error into an Error, defaulting to ErrStoreUnavailable.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}

	return ErrStoreUnavailable.WithInternal(err)
}
