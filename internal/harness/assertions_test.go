package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/incoq/internal/engine"
)

func traceResult() *Result {
	r := NewResult()
	r.Trace = []engine.Event{
		{Seq: 1, Op: "reladd", Target: "S", Elem: "(1, 2)"},
		{Seq: 2, Op: "reladd", Target: "R_Q1", Elem: "(1, 2)"},
		{Seq: 3, Op: "mapassign", Target: "A_Q2", Elem: "(1,)"},
		{Seq: 4, Op: "reladd", Target: "S", Elem: "(2, 3)"},
		{Seq: 5, Op: "clear", Target: "S"},
	}
	r.State["S"] = "{}"
	r.State["R_Q1"] = "{}"
	return r
}

func TestEventPattern(t *testing.T) {
	ev := engine.Event{Seq: 1, Op: "reladd", Target: "S", Elem: "(1, 2)"}

	tests := []struct {
		p    EventPattern
		want bool
	}{
		{EventPattern{Op: "reladd"}, true},
		{EventPattern{Target: "S"}, true},
		{EventPattern{Op: "reladd", Target: "S", Elem: "(1, 2)"}, true},
		{EventPattern{Op: "relremove"}, false},
		{EventPattern{Op: "reladd", Target: "T"}, false},
		{EventPattern{Elem: "(2, 3)"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.p.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Matches(ev))
		})
	}

	assert.Equal(t, "reladd * *", EventPattern{Op: "reladd"}.String())
	assert.Equal(t, "* S (1, 2)", EventPattern{Target: "S", Elem: "(1, 2)"}.String())
}

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "contains",
			assertion: Assertion{Type: AssertTraceContains, Op: "mapassign", Target: "A_Q2"},
		},
		{
			name:      "contains missing",
			assertion: Assertion{Type: AssertTraceContains, Op: "relremove"},
			want:      "Expected: event relremove * *",
		},
		{
			name: "order",
			assertion: Assertion{Type: AssertTraceOrder, Events: []EventPattern{
				{Target: "S"}, {Target: "R_Q1"}, {Op: "clear"},
			}},
		},
		{
			name: "order uses first matches",
			assertion: Assertion{Type: AssertTraceOrder, Events: []EventPattern{
				{Target: "R_Q1"}, {Target: "S"},
			}},
			want: "* R_Q1 * (pos 2) should be before * S * (pos 1)",
		},
		{
			name: "order missing event",
			assertion: Assertion{Type: AssertTraceOrder, Events: []EventPattern{
				{Target: "S"}, {Target: "T"},
			}},
			want: "missing event: * T *",
		},
		{
			name:      "count",
			assertion: Assertion{Type: AssertTraceCount, Op: "reladd", Target: "S", Count: 2},
		},
		{
			name:      "count zero",
			assertion: Assertion{Type: AssertTraceCount, Op: "relremove"},
		},
		{
			name:      "count mismatch",
			assertion: Assertion{Type: AssertTraceCount, Op: "reladd", Count: 2},
			want:      "Actual: occurred 3 time(s)",
		},
		{
			name:      "final state",
			assertion: Assertion{Type: AssertFinalState, Global: "S", Value: "{}"},
		},
		{
			name:      "final state differs",
			assertion: Assertion{Type: AssertFinalState, Global: "R_Q1", Value: "{(1, 2)}"},
			want:      "Actual: R_Q1 = {}",
		},
		{
			name:      "final state unknown collection",
			assertion: Assertion{Type: AssertFinalState, Global: "T", Value: "{}"},
			want:      "no collection T",
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "trace_missing"},
			want:      `unknown assertion type "trace_missing"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(traceResult(), []Assertion{tt.assertion})
			if tt.want == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestEvaluateAssertions_CollectsAll(t *testing.T) {
	errs := EvaluateAssertions(traceResult(), []Assertion{
		{Type: AssertTraceContains, Op: "relremove"},
		{Type: AssertTraceCount, Op: "clear", Count: 1},
		{Type: AssertFinalState, Global: "S", Value: "{1}"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "trace_contains")
	assert.Contains(t, errs[1], "final_state")
}

func TestAssertionError(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "event clear S * to occur 2 time(s)",
		Actual:   "occurred 1 time(s)",
		Trace: []engine.Event{
			{Seq: 1, Op: "reladd", Target: "S", Elem: "1"},
			{Seq: 2, Op: "clear", Target: "S"},
		},
	}

	want := `Assertion failed: trace_count
  Expected: event clear S * to occur 2 time(s)
  Actual: occurred 1 time(s)

Full trace:
  [1] reladd S 1
  [2] clear S
`
	assert.Equal(t, want, err.Error())

	noTrace := &AssertionError{Type: AssertFinalState, Expected: "S = {}", Actual: "S = {1}"}
	assert.Equal(t, "Assertion failed: final_state\n  Expected: S = {}\n  Actual: S = {1}\n", noTrace.Error())
}
