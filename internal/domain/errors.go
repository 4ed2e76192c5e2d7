package domain

import (
	"errors"
	"fmt"
)

var (
	// Authentication failures. All map to 401 at the gateway, with messages
	// that never reveal whether an account or token ever existed.
	ErrNoCredential        = errors.New("no credential presented")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrExpiredCredential   = errors.New("expired credential")
	ErrMalformedCredential = errors.New("malformed credential")

	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// ErrTaskNotFound covers both "no such task" and "task owned by someone
// else"; collapsing the two avoids leaking existence to non-owners.
var ErrTaskNotFound = fmt.Errorf("task: %w", ErrNotFound)

// ValidationError represents a field-level validation failure. Message is
// the user-visible reason string.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
