package services

import (
	"errors"
	"fmt"

	"github.com/olushako/vaulty/internal/store"
)

// Kind classifies service errors so transports can map them to status codes
// without string matching.
type Kind int

const (
	// KindInternal is any failure not covered by the taxonomy below.
	KindInternal Kind = iota
	// KindUnauthorized means the caller presented no valid credential.
	KindUnauthorized
	// KindForbidden means the credential is valid but out of scope.
	KindForbidden
	// KindNotFound means the addressed entity does not exist.
	KindNotFound
	// KindConflict means the operation collides with existing state.
	KindConflict
	// KindValidation means the input was rejected.
	KindValidation
)

// Error is a classified service error with a stable message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Forbidden builds a KindForbidden error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound builds a KindNotFound error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict builds a KindConflict error.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Validation builds a KindValidation error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// ValidationErr wraps a validation failure, keeping its message.
func ValidationErr(err error) *Error {
	return &Error{Kind: KindValidation, Message: err.Error(), cause: err}
}

// KindOf returns the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// mapStoreError translates store sentinels into classified service errors.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrProjectNotFound):
		return &Error{Kind: KindNotFound, Message: "project not found", cause: err}
	case errors.Is(err, store.ErrSecretNotFound):
		return &Error{Kind: KindNotFound, Message: "secret not found", cause: err}
	case errors.Is(err, store.ErrTokenNotFound):
		return &Error{Kind: KindNotFound, Message: "token not found", cause: err}
	case errors.Is(err, store.ErrDeviceNotFound):
		return &Error{Kind: KindNotFound, Message: "device not found", cause: err}
	case errors.Is(err, store.ErrDuplicateProjectName):
		return &Error{Kind: KindConflict, Message: "project name already exists", cause: err}
	case errors.Is(err, store.ErrDuplicateDeviceID):
		return &Error{Kind: KindConflict, Message: "device is already registered to another project", cause: err}
	case errors.Is(err, store.ErrSelfRevocation):
		return &Error{Kind: KindConflict, Message: "a token cannot revoke itself", cause: err}
	default:
		return err
	}
}
