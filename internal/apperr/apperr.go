// Package apperr defines the service-layer error taxonomy. Every error a
// service returns carries an HTTP status and a machine-readable code so the
// handler layer can map it to a response exactly once.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain error with an attached HTTP status.
type Error struct {
	Status int
	Code   string
	Detail string
	Err    error // underlying cause, set by Internal; never shown to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed or missing input (400).
func Validation(detail string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "validation_failed", Detail: detail}
}

// Unauthenticated reports a missing or invalid credential (401). The detail
// is deliberately generic so callers cannot tell which half of a credential
// pair was wrong.
func Unauthenticated() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "unauthenticated", Detail: "authentication required or credentials invalid"}
}

// Forbidden reports an authenticated caller acting outside its scope (403).
func Forbidden(detail string) *Error {
	return &Error{Status: http.StatusForbidden, Code: "forbidden", Detail: detail}
}

// NotFound reports a missing entity (404). Out-of-scope entities report the
// same error as truly absent ones so existence never leaks across tenants.
func NotFound(resource string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "not_found", Detail: resource + " not found"}
}

// Conflict reports a duplicate unique key or an invalid state transition (409).
func Conflict(detail string) *Error {
	return &Error{Status: http.StatusConflict, Code: "conflict", Detail: detail}
}

// InvalidTransition is the Conflict variant for workflow violations.
func InvalidTransition(from, to string) *Error {
	return &Error{Status: http.StatusConflict, Code: "invalid_transition", Detail: fmt.Sprintf("cannot transition from %q to %q", from, to)}
}

// Internal wraps an unexpected failure (500). The wrapped error is preserved
// for server-side logging; the detail shown to clients stays generic.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "internal", Detail: "internal server error", Err: err}
}

// From extracts an *Error from err, or wraps it as Internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// IsStatus reports whether err is an *Error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Status == status
}
