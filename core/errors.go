package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrForbidden       = errors.New("permission denied")
	ErrInvalidRef      = errors.New("invalid reference")
	ErrAlreadyExists   = errors.New("already exists")
	errInvalidRefText  = "invalid reference: object does not exist"
	errAlreadyExistsFt = "an object with this %s already exists"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shorthand for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports a missing object of a given resource.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (e NotFoundError) Error() string {
	return e.Resource + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// InvalidRefError reports a reference to an object that does not exist.
func InvalidRefError(field string) error {
	return NewValidationError(ErrInvalidRef, FieldError{Field: field, Error: errInvalidRefText})
}

// AlreadyExistsError reports a uniqueness violation.
func AlreadyExistsError(field string) error {
	msg := fmt.Sprintf(errAlreadyExistsFt, field)
	return NewValidationError(ErrAlreadyExists, FieldError{Field: field, Error: msg})
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
