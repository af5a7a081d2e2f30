package types

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad input rejected before any store call
	ErrValidation = errors.New("validation failed")

	// ErrAccessDenied marks a failed role or ownership check
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound marks a missing or inaccessible record
	ErrNotFound = errors.New("not found")

	// ErrTransient marks a network or query failure in the store
	ErrTransient = errors.New("transient store error")

	// ErrUnauthenticated marks a request with no usable session
	ErrUnauthenticated = errors.New("no authenticated session")
)

// Error carries one of the sentinels above plus the failing rule and cause.
type Error struct {
	Sentinel error
	Rule     string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := e.Sentinel.Error()
	if e.Rule != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Rule)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (cause: %v)", msg, e.Cause)
	}
	return msg
}

func (e *Error) Is(target error) bool { return e.Sentinel == target }
func (e *Error) Unwrap() error        { return e.Cause }

// Validation builds a validation error for the named rule
func Validation(rule, message string) *Error {
	return &Error{Sentinel: ErrValidation, Rule: rule, Message: message}
}

// AccessDenied builds an access denied error
func AccessDenied(message string) *Error {
	return &Error{Sentinel: ErrAccessDenied, Message: message}
}

// NotFound builds a not found error
func NotFound(message string) *Error {
	return &Error{Sentinel: ErrNotFound, Message: message}
}

// Transient wraps a store failure
func Transient(message string, cause error) *Error {
	return &Error{Sentinel: ErrTransient, Message: message, Cause: cause}
}

// Kind names the taxonomy entry of err, "unknown" when none matches.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	}
	return "unknown"
}

// Rule returns the failing validation rule carried by err, if any
func Rule(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Rule
	}
	return ""
}

// Message returns the human readable part of err without the taxonomy prefix
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
