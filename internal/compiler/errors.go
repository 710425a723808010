package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Phase names a step of the compilation pipeline.
type Phase string

const (
	PhaseValidate    Phase = "validate"
	PhasePreprocess  Phase = "preprocess"
	PhaseTypes       Phase = "types"
	PhaseParams      Phase = "params"
	PhaseDemand      Phase = "demand"
	PhaseOrder       Phase = "order"
	PhaseIncremental Phase = "incrementalize"
)

// Pipeline error codes (E200-E299)
const (
	ErrValidation     = "E200" // one or more ValidationErrors
	ErrDialect        = "E201" // construct outside the supported dialect
	ErrTypeAnalysis   = "E202" // type analysis failed
	ErrParameters     = "E203" // query parameters could not be determined
	ErrDemand         = "E204" // demand transformation failed
	ErrQueryCycle     = "E205" // queries depend on each other cyclically
	ErrIncrementalize = "E206" // a query could not be incrementalized
)

// CompileError reports a failed compilation.
type CompileError struct {
	Phase   Phase
	Code    string
	Message string

	// Errors holds every validation error when Code is ErrValidation.
	Errors []ValidationError `json:",omitempty"`

	Err error `json:"-"`
}

func (e *CompileError) Error() string {
	if len(e.Errors) > 0 {
		msgs := make([]string, len(e.Errors))
		for i, ve := range e.Errors {
			msgs[i] = ve.Error()
		}
		return fmt.Sprintf("%s: %s:\n  %s", e.Phase, e.Message, strings.Join(msgs, "\n  "))
	}
	return fmt.Sprintf("%s: [%s] %s", e.Phase, e.Code, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Err }

func phaseError(phase Phase, code string, err error) *CompileError {
	return &CompileError{Phase: phase, Code: code, Message: err.Error(), Err: err}
}

// AsCompileError returns the CompileError in err's chain, if any.
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	ok := errors.As(err, &ce)
	return ce, ok
}
