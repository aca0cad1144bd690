// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Record errors.
	ErrMalformedField      = errors.New("malformed field")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrExtractionFailed    = errors.New("extraction failed")

	// FX errors.
	ErrRateUnavailable   = errors.New("fx rate unavailable")
	ErrRateSourceDown    = errors.New("fx rate source unreachable")
	ErrRateSourceTimeout = errors.New("fx rate source timed out")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// MalformedFieldError reports a required field that is absent or failed
// canonical-form parsing. The owning record is excluded from the run.
type MalformedFieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MalformedFieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("malformed field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed field %q (%q): %s", e.Field, e.Value, e.Reason)
}

func (e *MalformedFieldError) Unwrap() error {
	return ErrMalformedField
}

// NewMalformedFieldError creates a MalformedFieldError for the named field.
func NewMalformedFieldError(field, value, reason string) error {
	return &MalformedFieldError{Field: field, Value: value, Reason: reason}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	// Check for specific retryable errors
	if errors.Is(err, ErrRateSourceTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Check for retryable error type
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
