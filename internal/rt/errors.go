package rt

import (
	"errors"
	"fmt"
)

// ContractError reports a violated precondition of a collection operation.
// It signals a bug in generated maintenance code rather than bad input.
type ContractError struct {
	Op      string // operation name, e.g. "CSet.remove"
	Elem    Value  // offending element or key
	Message string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s(%s): %s", e.Op, Format(e.Elem), e.Message)
}

// IsContractError returns true if err is a ContractError.
// Uses errors.As to handle wrapped errors.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

func contractf(op string, elem Value, format string, args ...any) *ContractError {
	return &ContractError{Op: op, Elem: elem, Message: fmt.Sprintf(format, args...)}
}
