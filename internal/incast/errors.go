package incast

import (
	"errors"
	"fmt"
	"strings"
)

// ProgramError reports a program the compiler cannot handle. It aborts
// the pass that raises it.
type ProgramError struct {
	Message string
	Node    Node // offending node, may be nil
}

func (e *ProgramError) Error() string {
	if e.Node == nil {
		return e.Message
	}
	first, _, _ := strings.Cut(Format(e.Node), "\n")
	return fmt.Sprintf("%s (at %s)", e.Message, first)
}

// Errorf returns a *ProgramError for node n.
func Errorf(n Node, format string, args ...any) *ProgramError {
	return &ProgramError{Message: fmt.Sprintf(format, args...), Node: n}
}

// IsProgramError reports whether err is or wraps a *ProgramError.
func IsProgramError(err error) bool {
	var pe *ProgramError
	return errors.As(err, &pe)
}

// DecodeError reports malformed tree input at a path such as
// "decls[0].body[2].value".
type DecodeError struct {
	Path    string
	Message string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return "decode: " + e.Message
	}
	return fmt.Sprintf("decode %s: %s", e.Path, e.Message)
}
