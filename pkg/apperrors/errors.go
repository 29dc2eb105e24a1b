package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to decide how to recover.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindCapacity     Kind = "capacity"
	KindTransient    Kind = "transient"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
)

// Error is the typed application error surfaced by services and the booking wizard.
type Error struct {
	Kind    Kind
	Message string
	// Field names the offending input for validation errors.
	Field string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a field-level validation error.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// NotFound creates a not found error for the named resource.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Capacity creates an error for a slot that has no remaining capacity.
func Capacity(message string) *Error {
	return &Error{Kind: KindCapacity, Message: message}
}

// Transient wraps a storage or network failure that may succeed on retry.
func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// Conflict creates an error for a request that clashes with current state.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Unauthorized creates an error for a missing or unusable identity.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Forbidden creates an error for an identity that may not act on a resource.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsCapacity(err error) bool   { return KindOf(err) == KindCapacity }
func IsTransient(err error) bool  { return KindOf(err) == KindTransient }

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindCapacity, KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
