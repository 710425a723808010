package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/incoq/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Trace    []engine.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, formatEvent(ev))
		}
	}

	return buf.String()
}

func formatEvent(ev engine.Event) string {
	if ev.Elem == "" {
		return ev.Op + " " + ev.Target
	}
	return ev.Op + " " + ev.Target + " " + ev.Elem
}

// String renders the pattern with "*" for unconstrained fields.
func (p EventPattern) String() string {
	or := func(s string) string {
		if s == "" {
			return "*"
		}
		return s
	}
	return or(p.Op) + " " + or(p.Target) + " " + or(p.Elem)
}

// Matches reports whether ev matches every non-empty field of p.
func (p EventPattern) Matches(ev engine.Event) bool {
	return (p.Op == "" || p.Op == ev.Op) &&
		(p.Target == "" || p.Target == ev.Target) &&
		(p.Elem == "" || p.Elem == ev.Elem)
}

// EvaluateAssertions checks every assertion against the result and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertTraceContains checks that some event matches the pattern.
func assertTraceContains(trace []engine.Event, a Assertion) error {
	p := a.Pattern()
	for _, ev := range trace {
		if p.Matches(ev) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s", p),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first match of each pattern comes
// after the first match of the previous one. Other events may intervene.
func assertTraceOrder(trace []engine.Event, a Assertion) error {
	positions := make([]int, len(a.Events))
	for i, p := range a.Events {
		positions[i] = -1
		for j, ev := range trace {
			if p.Matches(ev) {
				positions[i] = j
				break
			}
		}
		if positions[i] < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", a.Events),
				Actual:   fmt.Sprintf("missing event: %s", p),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Events); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					a.Events[i-1], positions[i-1]+1, a.Events[i], positions[i]+1),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count events match the pattern.
func assertTraceCount(trace []engine.Event, a Assertion) error {
	p := a.Pattern()
	count := 0
	for _, ev := range trace {
		if p.Matches(ev) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("event %s to occur %d time(s)", p, a.Count),
			Actual:   fmt.Sprintf("occurred %d time(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the formatted final value of a global.
func assertFinalState(result *Result, a Assertion) error {
	got, ok := result.State[a.Global]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Global, a.Value),
			Actual:   fmt.Sprintf("no collection %s", a.Global),
		}
	}
	if got != a.Value {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Global, a.Value),
			Actual:   fmt.Sprintf("%s = %s", a.Global, got),
		}
	}
	return nil
}
