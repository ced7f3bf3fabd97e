package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication   = errors.New("authentication error")
	ErrUnauthorizedCall = errors.New("unauthorized call initiation")
	ErrNoActiveCall     = errors.New("call no longer exists")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrValidation       = errors.New("validation error")
)

// ValidationError reports a missing or malformed field of an inbound payload.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
