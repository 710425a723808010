package engine

import "fmt"

// DefaultMaxSteps is the default maximum number of statements a run may
// execute. It stops programs that loop forever.
const DefaultMaxSteps = 1_000_000

// QuotaEnforcer counts executed statements and enforces a maximum.
//
// Every statement counts one step, including the statements of
// maintenance procedures, so the limit bounds the total work of a run
// and not only the user program's.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit. A
// limit of zero or less disables the quota.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates it against the limit.
func (q *QuotaEnforcer) Check(runID string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &RuntimeError{
			Code:    ErrCodeQuotaExceeded,
			Message: fmt.Sprintf("run exceeded max steps (%d > %d)", q.current, q.maxSteps),
			RunID:   runID,
		}
	}
	return nil
}

// Current returns the number of steps taken.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}
