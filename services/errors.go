package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindAuth          ErrorKind = "auth_error"
	KindValidation    ErrorKind = "validation_error"
	KindAuthorization ErrorKind = "authorization_error"
	KindConflict      ErrorKind = "conflict"
	KindNotFound      ErrorKind = "not_found"
	KindStorage       ErrorKind = "storage_error"
)

// Error is returned by every service operation. Message is safe to show to
// clients; Err carries the underlying cause for server-side logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict)
// works regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrAuth          = &Error{Kind: KindAuth, Message: "authentication error"}
	ErrValidation    = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrAuthorization = &Error{Kind: KindAuthorization, Message: "not permitted"}
	ErrConflict      = &Error{Kind: KindConflict, Message: "conflict"}
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "not found"}
	ErrStorage       = &Error{Kind: KindStorage, Message: "internal error"}
)

func authError(err error) error {
	return &Error{Kind: KindAuth, Message: ErrAuth.Message, Err: err}
}

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func authorizationError(msg string) error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func conflictError(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

func notFoundError(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func storageError(op string, err error) error {
	return &Error{Kind: KindStorage, Message: ErrStorage.Message, Err: fmt.Errorf("%s: %w", op, err)}
}

// ValidationError builds a validation error outside the services package,
// e.g. for malformed protocol frames.
func ValidationError(msg string) error {
	return validationError(msg)
}

// KindOf reports the kind of err. Errors that did not originate in a service
// are treated as storage failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// PublicMessage returns the text a client may see for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindStorage {
		return e.Message
	}
	return ErrStorage.Message
}
