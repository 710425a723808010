package harness

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/incoq/internal/incast"
)

// Snapshot renders a compiled program for golden comparison: one comment
// line per non-empty declaration list, a blank line, then the formatted
// module.
func Snapshot(p *incast.Program) []byte {
	var buf bytes.Buffer
	for _, decl := range []struct {
		label string
		names []string
	}{
		{"relations", p.Relations},
		{"counted", p.Counted},
		{"maps", p.Maps},
	} {
		if len(decl.names) > 0 {
			fmt.Fprintf(&buf, "# %s: %s\n", decl.label, strings.Join(decl.names, ", "))
		}
	}
	if buf.Len() > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString(incast.Format(p.Module))
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares the compiled program
// against a golden file, testdata/golden/{scenario.Name}.golden unless
// opts say otherwise.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the compiled program doesn't match the golden file; failed
// scenario expectations are left to the caller in the result.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the compiled program of an existing result
// against the golden file for name.
func AssertGolden(t *testing.T, name string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	if result.Compiled == nil || result.Compiled.Program == nil {
		return fmt.Errorf("result of %s has no compiled program", name)
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, name, Snapshot(result.Compiled.Program))

	return nil
}
