package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError through errors.Is.
	ErrValidation = errors.New("validation failed")

	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidRange       = errors.New("invalid range")
	ErrInvalidTarget      = errors.New("invalid goal target")
	ErrInvalidFrequency   = errors.New("invalid repetition type")
	ErrEmptyUser          = errors.New("empty user id")
	ErrEmptyPaymentMethod = errors.New("empty payment method")
	ErrEmptyGoalName      = errors.New("empty goal name")

	// ErrCorruptData marks a stored collection that could not be decoded.
	// Stores recover from it by substituting an empty collection.
	ErrCorruptData = errors.New("corrupt stored data")
)

// ValidationError reports a rejected input. No mutation happens when one is
// returned.
type ValidationError struct {
	Field string
	Err   error
}

// Invalid builds a *ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IsValidation reports whether err is (or wraps) a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// PersistenceError wraps a storage failure for operation Op.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
