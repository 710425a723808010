package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

// Scenario defines a conformance test scenario: a program, how to
// compile it, and what the compiled program must do when run.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path of a YAML program file.
	Program string `yaml:"program,omitempty"`

	// Source is an inline YAML program, used instead of Program.
	Source string `yaml:"source,omitempty"`

	// Config is the path of an optional CUE symbol configuration.
	Config string `yaml:"config,omitempty"`

	// Entry is the function to call after module initialisation.
	// Defaults to "main".
	Entry string `yaml:"entry,omitempty"`

	// MaxSteps overrides the engine's statement quota.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// RunID is an optional fixed run id. If empty, testutil.DefaultRunID
	// is used.
	RunID string `yaml:"run_id,omitempty"`

	Expect     Expect        `yaml:"expect"`
	Queries    []QueryExpect `yaml:"queries,omitempty"`
	Assertions []Assertion   `yaml:"assertions,omitempty"`

	// Prog and Cfg let Go tests supply an already built program and
	// configuration. They take precedence over Program, Source and Config.
	Prog *incast.Program `yaml:"-"`
	Cfg  *symtab.Config  `yaml:"-"`
}

// Expect describes the observable result of the run.
type Expect struct {
	// Output is the expected printed lines.
	Output []string `yaml:"output"`

	// Error is the expected runtime error code, such as CONTRACT_VIOLATION.
	// When set, Output is not checked.
	Error string `yaml:"error,omitempty"`
}

// QueryExpect checks the compiler's decisions for one query. Empty fields
// are not checked.
type QueryExpect struct {
	Name         string   `yaml:"name"`
	Impl         string   `yaml:"impl,omitempty"`
	Params       []string `yaml:"params,omitempty"`
	DemandParams []string `yaml:"demand_params,omitempty"`
	Result       string   `yaml:"result,omitempty"`
}

// EventPattern matches trace events. Empty fields match anything.
type EventPattern struct {
	Op     string `yaml:"op,omitempty"`
	Target string `yaml:"target,omitempty"`
	Elem   string `yaml:"elem,omitempty"`
}

// Assertion validates the trace or the final state of the compiled run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some event matches the pattern
	// - "trace_order": the events appear in order
	// - "trace_count": exactly Count events match the pattern
	// - "final_state": Global formats to Value
	Type string `yaml:"type"`

	// Pattern fields (trace_contains, trace_count).
	Op     string `yaml:"op,omitempty"`
	Target string `yaml:"target,omitempty"`
	Elem   string `yaml:"elem,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected event order (trace_order).
	Events []EventPattern `yaml:"events,omitempty"`

	// Global and Value name a collection and its formatted final value
	// (final_state).
	Global string `yaml:"global,omitempty"`
	Value  string `yaml:"value,omitempty"`
}

// Pattern returns the event pattern of a trace_contains or trace_count
// assertion.
func (a Assertion) Pattern() EventPattern {
	return EventPattern{Op: a.Op, Target: a.Target, Elem: a.Elem}
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file, resolving program
// and config paths relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving program and config paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.Program = resolve(basePath, scenario.Program)
	scenario.Config = resolve(basePath, scenario.Config)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolve(basePath, path string) string {
	if path == "" || filepath.IsAbs(path) || basePath == "" {
		return path
	}
	return filepath.Join(basePath, path)
}

// loadProgram returns the scenario's program.
func (s *Scenario) loadProgram() (*incast.Program, error) {
	if s.Prog != nil {
		return s.Prog, nil
	}
	data := []byte(s.Source)
	if s.Program != "" {
		var err error
		if data, err = os.ReadFile(s.Program); err != nil {
			return nil, fmt.Errorf("failed to read program: %w", err)
		}
	}
	prog, err := incast.ParseProgram(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}
	return prog, nil
}

// loadConfig returns the scenario's symbol configuration.
func (s *Scenario) loadConfig() (*symtab.Config, error) {
	if s.Cfg != nil {
		return s.Cfg, nil
	}
	if s.Config == "" {
		return symtab.DefaultConfig(), nil
	}
	cfg, err := symtab.LoadConfig(s.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (s *Scenario) entry() string {
	if s.Entry == "" {
		return "main"
	}
	return s.Entry
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Prog == nil {
		switch {
		case s.Program == "" && s.Source == "":
			return fmt.Errorf("program or source is required")
		case s.Program != "" && s.Source != "":
			return fmt.Errorf("program and source are mutually exclusive")
		}
	}

	if s.Program != "" {
		if _, err := os.Stat(s.Program); os.IsNotExist(err) {
			return fmt.Errorf("program file not found: %s", s.Program)
		}
	}
	if s.Config != "" {
		if _, err := os.Stat(s.Config); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", s.Config)
		}
	}

	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	if s.Expect.Output == nil && s.Expect.Error == "" {
		return fmt.Errorf("expect.output or expect.error is required")
	}

	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Pattern() == (EventPattern{}) {
			return fmt.Errorf("assertions[%d]: op, target or elem is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
		for j, ev := range a.Events {
			if ev == (EventPattern{}) {
				return fmt.Errorf("assertions[%d].events[%d]: op, target or elem is required", index, j)
			}
		}
	case AssertTraceCount:
		if a.Pattern() == (EventPattern{}) {
			return fmt.Errorf("assertions[%d]: op, target or elem is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Global == "" {
			return fmt.Errorf("assertions[%d]: global is required for final_state", index)
		}
		if a.Value == "" {
			return fmt.Errorf("assertions[%d]: value is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
