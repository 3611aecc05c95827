// Package apperr classifies failures into the categories reported to callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the error category.
type Kind string

const (
	// KindValidation is a local validation failure; no remote call was made.
	KindValidation Kind = "validation"

	// KindAuth is a rejected login against an external system.
	KindAuth Kind = "auth_failed"

	// KindNotFound is a missing local or remote record.
	KindNotFound Kind = "not_found"

	// KindRemote is a business-rule rejection or fault from a remote system.
	KindRemote Kind = "remote"

	// KindInternal is everything else.
	KindInternal Kind = "internal"
)

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Kinded is implemented by errors from client packages that know their own category.
type Kinded interface {
	ErrorKind() Kind
}

// Validation returns a KindValidation error.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Auth wraps err as a KindAuth error.
func Auth(message string, err error) error {
	return &Error{Kind: KindAuth, Message: message, Err: err}
}

// Remote wraps err as a KindRemote error.
func Remote(message string, err error) error {
	return &Error{Kind: KindRemote, Message: message, Err: err}
}

// KindOf reports the category of err. The outermost classification wins.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindInternal
}

// Status maps a Kind to the HTTP status returned to the caller.
func Status(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth, KindRemote:
		return http.StatusBadGateway
	case "":
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
