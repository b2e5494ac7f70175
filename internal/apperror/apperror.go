// Package apperror defines the error kinds surfaced by the domain services so
// transports can render a specific response for each of them.
package apperror

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Kind classifies a domain failure.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation_error"
	KindConflict     Kind = "conflict"
	KindStorage      Kind = "storage_error"
)

// Error is a classified failure. Err carries the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Kind sentinels match any error of the same kind through errors.Is.
var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrStorage      = &Error{Kind: KindStorage}
)

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a target of the same kind. A target with a message only matches that exact message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// New builds a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Forbidden builds an authorization denial.
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// NotFound builds a missing-resource error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation builds an input error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict builds a state-transition race error.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// KindOf returns the kind of err. Validator errors count as validation,
// unclassified errors count as storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return KindValidation
	}
	return KindStorage
}

// FromStore classifies an error returned by the store. Missing rows map to
// notFound, unique violations to a conflict and everything else to a storage error.
// Errors that are already classified pass through untouched.
func FromStore(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if notFound != nil {
			return notFound
		}
		return Wrap(KindNotFound, "record not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(KindConflict, "record already exists", err)
	default:
		return Wrap(KindStorage, "storage failure", err)
	}
}
