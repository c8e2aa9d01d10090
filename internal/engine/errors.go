package engine

import (
	"errors"
	"fmt"

	"github.com/mtessier/reactsync/internal/chat"
)

// ConfigError represents a validation failure of a configuration
// operation (bind, unbind, link, unlink, reconcile). These are reported
// synchronously to the caller and never retried.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// Ref identifies the affected message, when one is involved.
	Ref chat.MessageRef

	// Symbol identifies the affected reaction symbol, when one is
	// involved.
	Symbol chat.Symbol
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeAlreadyBound indicates the (message, symbol) pair already
	// maps to a role.
	ErrCodeAlreadyBound ConfigErrorCode = "ALREADY_BOUND"

	// ErrCodeNotBound indicates no binding exists for the pair.
	ErrCodeNotBound ConfigErrorCode = "NOT_BOUND"

	// ErrCodeNotLinked indicates the named link group does not exist.
	ErrCodeNotLinked ConfigErrorCode = "NOT_LINKED"

	// ErrCodePairInvalid indicates a message referenced by a link
	// group could not be resolved.
	ErrCodePairInvalid ConfigErrorCode = "PAIR_INVALID"

	// ErrCodeCannotReconcileLinked indicates a reconcile was requested
	// on a message that is part of a link group, where presence of a
	// reaction is ambiguous.
	ErrCodeCannotReconcileLinked ConfigErrorCode = "CANNOT_RECONCILE_LINKED"

	// ErrCodeUnknownSymbol indicates the bind-time validity probe
	// rejected the symbol.
	ErrCodeUnknownSymbol ConfigErrorCode = "UNKNOWN_SYMBOL"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s: %s (message=%s, symbol=%s)", e.Code, e.Message, e.Ref, e.Symbol)
	}
	if (e.Ref != chat.MessageRef{}) {
		return fmt.Sprintf("%s: %s (message=%s)", e.Code, e.Message, e.Ref)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// hasCode reports whether err is a ConfigError with the given code.
// Uses errors.As to handle wrapped errors.
func hasCode(err error, code ConfigErrorCode) bool {
	var ce *ConfigError
	return errors.As(err, &ce) && ce.Code == code
}

// IsAlreadyBound reports whether err is an AlreadyBound error.
func IsAlreadyBound(err error) bool { return hasCode(err, ErrCodeAlreadyBound) }

// IsNotBound reports whether err is a NotBound error.
func IsNotBound(err error) bool { return hasCode(err, ErrCodeNotBound) }

// IsPairInvalid reports whether err is a PairInvalid error.
func IsPairInvalid(err error) bool { return hasCode(err, ErrCodePairInvalid) }

// IsCannotReconcileLinked reports whether err is a
// CannotReconcileLinked error.
func IsCannotReconcileLinked(err error) bool {
	return hasCode(err, ErrCodeCannotReconcileLinked)
}

// IsUnknownSymbol reports whether err is an UnknownSymbol error.
func IsUnknownSymbol(err error) bool { return hasCode(err, ErrCodeUnknownSymbol) }

func newAlreadyBound(ref chat.MessageRef, symbol chat.Symbol) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeAlreadyBound,
		Message: "symbol is already bound on that message",
		Ref:     ref,
		Symbol:  symbol,
	}
}

func newNotBound(ref chat.MessageRef, symbol chat.Symbol) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeNotBound,
		Message: "symbol is not bound on that message",
		Ref:     ref,
		Symbol:  symbol,
	}
}

func newNotLinked(name string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeNotLinked,
		Message: fmt.Sprintf("no link group named %q", name),
	}
}

func newPairInvalid(ref chat.MessageRef, cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodePairInvalid,
		Message: fmt.Sprintf("linked message cannot be resolved: %v", cause),
		Ref:     ref,
	}
}

func newCannotReconcileLinked(ref chat.MessageRef) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeCannotReconcileLinked,
		Message: "message is part of a link group; which exclusive role to grant is ambiguous",
		Ref:     ref,
	}
}

func newUnknownSymbol(ref chat.MessageRef, symbol chat.Symbol, cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnknownSymbol,
		Message: fmt.Sprintf("symbol rejected by the platform: %v", cause),
		Ref:     ref,
		Symbol:  symbol,
	}
}
