package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/incoq/internal/rt"
)

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeContract indicates a collection precondition was violated,
	// such as adding an element already present or deleting a missing key.
	// In compiled code it means a maintenance procedure is wrong.
	ErrCodeContract RuntimeErrorCode = "CONTRACT_VIOLATION"

	// ErrCodeQuotaExceeded indicates the run exceeded its step limit.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeUnknownName indicates a variable, function or global that is
	// not defined.
	ErrCodeUnknownName RuntimeErrorCode = "UNKNOWN_NAME"

	// ErrCodeType indicates an operation applied to a value of the wrong
	// kind, or a pattern of the wrong arity.
	ErrCodeType RuntimeErrorCode = "TYPE_ERROR"

	// ErrCodeCycle indicates a maintenance procedure re-entered itself
	// for the same element.
	ErrCodeCycle RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeUnsupported indicates a construct the interpreter does not
	// execute.
	ErrCodeUnsupported RuntimeErrorCode = "UNSUPPORTED"
)

// RuntimeError represents an error detected while executing a program.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Func names the function executing when the error occurred. Empty
	// for module-level statements.
	Func string

	// RunID identifies the run.
	RunID string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Code, e.Message, e.Func)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// IsQuotaError returns true if the error is a quota exceeded error.
// Uses errors.As to handle wrapped errors.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	return false
}

// IsContractError returns true if the error reports a violated collection
// precondition, whether raised by the runtime library directly or wrapped
// in a RuntimeError.
func IsContractError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeContract {
		return true
	}
	return rt.IsContractError(err)
}

// IsCycleError returns true if the error is a cycle detection error.
func IsCycleError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCycle
	}
	return false
}

var errNotCollection = errors.New("is not a collection")

// codeOf maps an error from the runtime library to a code.
func codeOf(err error) RuntimeErrorCode {
	if rt.IsContractError(err) {
		return ErrCodeContract
	}
	return ErrCodeType
}
