package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrTokenMissingSubject = errors.New("token missing subject")
)

// ErrorKind classifies failures surfaced to API callers.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not_found"
	KindStore          ErrorKind = "store"
)

// Error is a request-scoped failure carrying the HTTP status it renders with.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

// NewAuthenticationError builds an authentication failure. The status varies
// by cause: 401 for a missing credential, 400 for an unusable token, 403 for
// rejected login credentials.
func NewAuthenticationError(status int, message string) *Error {
	return &Error{Kind: KindAuthentication, Status: status, Message: message}
}

func NewAuthorizationError(role Role) *Error {
	return &Error{
		Kind:    KindAuthorization,
		Status:  http.StatusForbidden,
		Message: fmt.Sprintf("Role: %s is not allowed to access this resource", role),
	}
}

func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: message}
}

// NewStoreError wraps a persistence failure. The driver message is what the
// caller sees.
func NewStoreError(err error) *Error {
	return &Error{Kind: KindStore, Status: http.StatusBadRequest, Message: err.Error(), Err: err}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
