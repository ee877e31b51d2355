// Package apperr defines the error taxonomy shared by the storage, index and
// repository layers.
package apperr

import (
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	ErrIO       = errors.New("io failure")
)

// ValidationError carries every field-level message produced while validating
// custom fields. It matches ErrInvalid.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return ErrInvalid.Error()
	}
	return "invalid: " + strings.Join(e.Messages, "; ")
}

// Is reports whether target is ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Invalid builds a ValidationError from messages.
func Invalid(messages ...string) error {
	return &ValidationError{Messages: messages}
}

// IOError marks a disk or index failure that is fatal to the current operation.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// IO wraps err as an IOError unless it already carries a taxonomy error.
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalid) || errors.Is(err, ErrIO) {
		return err
	}
	return &IOError{Op: op, Err: err}
}
