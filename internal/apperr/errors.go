// Package apperr provides the structured error kinds reported by the lounge core.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error category.
type Kind string

const (
	Unknown       Kind = "UNKNOWN"
	Validation    Kind = "VALIDATION"
	State         Kind = "STATE"
	NotFound      Kind = "NOT_FOUND"
	Configuration Kind = "CONFIGURATION"
	Storage       Kind = "STORAGE"
)

// Error lets a bare Kind be used as an errors.Is target.
func (k Kind) Error() string {
	return string(k)
}

// HTTPStatus maps a kind to the status code the API responds with.
func (k Kind) HTTPStatus() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case State:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case Configuration:
		return http.StatusUnprocessableEntity
	case Storage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type.
type Error struct {
	Kind    Kind   // Category
	Op      string // Operation that failed, e.g. "session.end"
	Message string // Internal message for logs
	Cause   error  // Wrapped underlying error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// New creates a domain error.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a domain error around an underlying cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{
		Kind:  kind,
		Op:    op,
		Cause: cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
