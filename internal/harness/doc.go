// Package harness runs conformance scenarios against the compiler and
// the engine.
//
// A scenario names a program, an optional symbol configuration and the
// behaviour the compiled program must show. The harness compiles the
// program, runs the compiled program and the original program side by
// side, and checks that both print the expected output. Incrementalized
// queries must be observationally identical to their from-scratch
// evaluation, so any difference between the two runs is a failure.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	program: ../programs/sum_of_image.yaml
//	config: ../configs/no_demand.cue
//	entry: main
//	run_id: sum-of-image-001
//	expect:
//	  output: ["2", "0", "7", "3", "0"]
//	queries:
//	  - name: Q1
//	    impl: inc
//	    params: [a]
//	    result: R_Q1
//	assertions:
//	  - type: trace_contains
//	    op: reladd
//	    target: R_Q1
//	  - type: final_state
//	    global: S
//	    value: "{}"
//
// Paths are relative to the scenario file. A program may be given inline
// with source instead of program. A scenario that expects the run to
// fail names the runtime error code with expect.error.
//
// # Assertion Types
//
//   - trace_contains: some trace event matches op, target and elem
//   - trace_order: the first matches of events occur in the given order
//   - trace_count: exactly count events match
//   - final_state: a global formats to value after the run
//
// # Deterministic Testing
//
// Every run uses a fixed run id (scenario.run_id, or
// testutil.DefaultRunID) and the engine's logical clock, and each
// scenario records into a fresh in-memory SQLite store. Running a
// scenario twice yields identical results, and compiled programs can be
// compared against golden files with RunWithGolden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/sum_of_image.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
