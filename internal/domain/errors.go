package domain

import (
	"errors"
	"strings"
)

// Storage sentinel errors
var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrUserNotFound   = errors.New("user not found")
)

// ErrorKind classifies an application-level failure
type ErrorKind string

const (
	KindUnauthenticated  ErrorKind = "unauthenticated"
	KindNotFound         ErrorKind = "not_found"
	KindValidationFailed ErrorKind = "validation_failed"
	KindConflict         ErrorKind = "conflict"
	KindInternal         ErrorKind = "internal"
)

// Error is a tagged application error carrying a numeric status and, for
// validation failures, the accumulated per-field messages. The transport
// layer surfaces Status and Details inside the response payload while
// keeping the outer HTTP status fixed.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Details []string
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, "; ")
}

// NewUnauthenticated returns a 401 error
func NewUnauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Status: 401, Message: "Not authenticated."}
}

// NewNotFound returns a 404 error
func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Status: 404, Message: message}
}

// NewValidationFailed returns a 422 error carrying every failed check
func NewValidationFailed(details []string) *Error {
	return &Error{Kind: KindValidationFailed, Status: 422, Message: "Invalid input.", Details: details}
}

// NewConflict returns a 422 error for a duplicate resource
func NewConflict(message string, details ...string) *Error {
	return &Error{Kind: KindConflict, Status: 422, Message: message, Details: details}
}

// NewInternal returns a generic 500 error; internals are logged, not leaked
func NewInternal() *Error {
	return &Error{Kind: KindInternal, Status: 500, Message: "Internal server error."}
}

// AsError extracts a tagged *Error from err, or wraps err as internal
func AsError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternal()
}
