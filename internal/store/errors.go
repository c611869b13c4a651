package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("conflict")
	ErrLimitExceeded = errors.New("credit limit exceeded")
	ErrForbidden     = errors.New("forbidden")
)

// LimitExceededError reports how much credit was still available when a
// debt was rejected.
type LimitExceededError struct {
	Available int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("excede el cupo disponible. Disponible: %d", e.Available)
}

func (e *LimitExceededError) Unwrap() error {
	return ErrLimitExceeded
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
