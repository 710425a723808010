package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a directory holds no scenario
// files.
type ScenarioNotFoundError struct {
	Dir string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("no scenario files (*.yaml) in %s", e.Dir)
}

// FindScenarios returns the scenario files in dir, sorted by name.
func FindScenarios(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	if len(paths) == 0 {
		return nil, &ScenarioNotFoundError{Dir: dir}
	}
	sort.Strings(paths)
	return paths, nil
}

// SuiteResult contains the results of running a set of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one scenario that could not be loaded, could not
// run, or did not pass.
type ScenarioFailure struct {
	Scenario string `json:"scenario,omitempty"`
	Path     string `json:"path"`
	Error    string `json:"error"`
}

// Pass reports whether every scenario passed.
func (r *SuiteResult) Pass() bool {
	return r.Failed == 0
}

// RunSuite loads and runs every scenario file in paths. A scenario that
// fails to load or run counts as failed; RunSuite itself only returns an
// error when ctx is cancelled.
func RunSuite(ctx context.Context, paths []string) (*SuiteResult, error) {
	suite := &SuiteResult{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		suite.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(ScenarioFailure{Path: path, Error: err.Error()})
			continue
		}
		result, err := RunContext(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			suite.fail(ScenarioFailure{Scenario: scenario.Name, Path: path, Error: err.Error()})
			continue
		}
		if !result.Pass {
			suite.fail(ScenarioFailure{
				Scenario: scenario.Name,
				Path:     path,
				Error:    strings.Join(result.Errors, "\n"),
			})
			continue
		}
		suite.Passed++
	}
	return suite, nil
}

func (r *SuiteResult) fail(f ScenarioFailure) {
	r.Failed++
	r.Failures = append(r.Failures, f)
}
