package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenariosDir, "sum_of_image_no_demand.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sum_of_image_no_demand", s.Name)
	assert.NotEmpty(t, s.Description)
	assert.Equal(t, filepath.Join("..", "..", "testdata", "programs", "sum_of_image.yaml"), s.Program)
	assert.Equal(t, filepath.Join("..", "..", "testdata", "configs", "no_demand.cue"), s.Config)
	assert.Equal(t, "main", s.entry())
	assert.Equal(t, "sum-of-image-no-demand", s.RunID)
	assert.Equal(t, sumOfImageOutput, s.Expect.Output)

	require.Len(t, s.Queries, 2)
	assert.Equal(t, QueryExpect{
		Name:         "Q1",
		Impl:         "inc",
		Params:       []string{"a"},
		DemandParams: []string{"a"},
		Result:       "R_Q1",
	}, s.Queries[0])

	require.Len(t, s.Assertions, 4)
	assert.Equal(t, AssertTraceOrder, s.Assertions[0].Type)
	assert.Equal(t, []EventPattern{
		{Op: "reladd", Target: "S"},
		{Op: "relremove", Target: "S", Elem: "(2, 4)"},
	}, s.Assertions[0].Events)
	assert.Equal(t, 4, s.Assertions[1].Count)
}

func TestLoadScenario_InlineSource(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenariosDir, "fill_and_clear.yaml"))
	require.NoError(t, err)

	assert.Empty(t, s.Program)
	assert.Contains(t, s.Source, "relations: [S]")

	prog, err := s.loadProgram()
	require.NoError(t, err)
	assert.Equal(t, []string{"S"}, prog.Relations)

	cfg, err := s.loadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.UsesDemand)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "p.yaml", contractSource)
	path := writeScenario(t, t.TempDir(), "s.yaml", `
name: based
description: "program resolved against the base path"
program: p.yaml
expect:
  error: CONTRACT_VIOLATION
`)

	s, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "p.yaml"), s.Program)

	_, err = LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program file not found")
}

func TestLoadScenario_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: y\nsource: z\nexpect: {output: []}\nassertion: []\n",
			want:    "failed to parse YAML",
		},
		{
			name:    "not yaml",
			content: "name: [",
			want:    "failed to parse YAML",
		},
		{
			name:    "invalid",
			content: "name: x\ndescription: y\nexpect: {output: []}\n",
			want:    "invalid scenario: program or source is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, dir, "s.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadScenario(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:        "s",
			Description: "d",
			Source:      contractSource,
			Expect:      Expect{Error: "CONTRACT_VIOLATION"},
		}
	}

	tests := []struct {
		name   string
		modify func(*Scenario)
		want   string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"empty output is an expectation", func(s *Scenario) { s.Expect = Expect{Output: []string{}} }, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"no program", func(s *Scenario) { s.Source = "" }, "program or source is required"},
		{"built program", func(s *Scenario) { s.Source = ""; s.Prog = fillAndClear() }, ""},
		{"program and source", func(s *Scenario) { s.Program = sumOfImage }, "mutually exclusive"},
		{"missing program file", func(s *Scenario) { s.Source = ""; s.Program = "nope.yaml" }, "program file not found: nope.yaml"},
		{"missing config file", func(s *Scenario) { s.Config = "nope.cue" }, "config file not found: nope.cue"},
		{"negative max steps", func(s *Scenario) { s.MaxSteps = -1 }, "max_steps must be non-negative"},
		{"no expectation", func(s *Scenario) { s.Expect = Expect{} }, "expect.output or expect.error is required"},
		{"unnamed query", func(s *Scenario) { s.Queries = []QueryExpect{{Impl: "inc"}} }, "queries[0]: name is required"},
		{
			"assertion without type",
			func(s *Scenario) { s.Assertions = []Assertion{{Op: "reladd"}} },
			"assertions[0]: type is required",
		},
		{
			"unknown assertion type",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: "trace_missing"}} },
			`unknown assertion type "trace_missing"`,
		},
		{
			"empty trace_contains",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceContains}} },
			"op, target or elem is required for trace_contains",
		},
		{
			"empty trace_order",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceOrder}} },
			"events list is required for trace_order",
		},
		{
			"empty trace_order event",
			func(s *Scenario) {
				s.Assertions = []Assertion{{Type: AssertTraceOrder, Events: []EventPattern{{Op: "reladd"}, {}}}}
			},
			"assertions[0].events[1]",
		},
		{
			"negative count",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceCount, Op: "clear", Count: -1}} },
			"count must be non-negative",
		},
		{
			"zero count",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceCount, Op: "clear"}} },
			"",
		},
		{
			"final_state without global",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertFinalState, Value: "{}"}} },
			"global is required for final_state",
		},
		{
			"final_state without value",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertFinalState, Global: "S"}} },
			"value is required for final_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.modify(s)
			err := validateScenario(s)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
