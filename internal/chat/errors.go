package chat

import (
	"errors"
	"fmt"
)

// StoreErrorKind classifies membership store failures.
type StoreErrorKind string

const (
	// StoreForbidden means the store rejected the mutation outright
	// (missing permission, role above the engine account's own).
	StoreForbidden StoreErrorKind = "FORBIDDEN"

	// StoreTransient covers rate limits, timeouts, and server errors
	// that are expected to clear on retry.
	StoreTransient StoreErrorKind = "TRANSIENT"
)

// StoreError is a classified membership store failure. The worker
// branches on Kind instead of inspecting transport details.
type StoreError struct {
	Kind    StoreErrorKind
	Message string

	// Status is the HTTP status that produced the error, when the
	// error came from the REST client. Zero otherwise.
	Status int
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status=%d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewForbidden creates a Forbidden store error.
func NewForbidden(message string) *StoreError {
	return &StoreError{Kind: StoreForbidden, Message: message}
}

// NewTransient creates a Transient store error.
func NewTransient(message string) *StoreError {
	return &StoreError{Kind: StoreTransient, Message: message}
}

// NewForbiddenStatus creates a Forbidden store error carrying the HTTP
// status that produced it.
func NewForbiddenStatus(message string, status int) *StoreError {
	return &StoreError{Kind: StoreForbidden, Message: message, Status: status}
}

// NewTransientStatus creates a Transient store error carrying the HTTP
// status that produced it.
func NewTransientStatus(message string, status int) *StoreError {
	return &StoreError{Kind: StoreTransient, Message: message, Status: status}
}

// IsForbidden reports whether err is a Forbidden store error.
// Uses errors.As to handle wrapped errors.
func IsForbidden(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == StoreForbidden
}

// IsTransient reports whether err is a Transient store error.
// Uses errors.As to handle wrapped errors.
func IsTransient(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == StoreTransient
}
