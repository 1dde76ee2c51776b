// Package shared contains common domain types, errors and events
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Every error returned by the core matches exactly one of
// them through errors.Is().
var (
	// ErrNotFound: a referenced user, mentor, badge or session is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict: duplicate award, double-booked slot, illegal transition.
	ErrConflict = errors.New("conflict")

	// ErrValidation: malformed input, unknown enum value, bad metric.
	ErrValidation = errors.New("validation error")

	// ErrStorage: underlying read/write failure, not classified further.
	ErrStorage = errors.New("storage failure")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "stats", "badge", "mentorship"
	Op      string // Operation that failed, e.g., "Track", "Schedule"
	Kind    error  // One of the base kinds above
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// StorageError wraps a driver error as a storage failure.
func StorageError(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	return WrapError(domain, op, ErrStorage, "storage operation failed", err)
}

// ValidationError builds a validation error with a formatted message.
func ValidationError(domain, op, format string, args ...any) error {
	return NewDomainError(domain, op, ErrValidation, fmt.Sprintf(format, args...))
}

// Domain-level sentinels shared by several packages.
var (
	ErrUserNotFound   = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrBadgeNotFound  = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
	ErrMentorNotFound = NewDomainError("mentorship", "FindAvailability", ErrNotFound, "mentor availability not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStorage checks if the error is a storage failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
