// Package engine interprets incoq programs.
//
// The engine runs both the input program and the program produced by
// the compiler, so the two can be compared run for run. Queries in an
// unincrementalized program are evaluated from scratch on every use;
// in a compiled program they become lookups on result relations and
// aggregate maps that maintenance procedures keep up to date.
//
// EXECUTION MODEL:
//
// A run executes the module-level statements once and then calls the
// entry function. Execution is single-threaded and deterministic:
//   - statements run in program order
//   - maintenance procedures run synchronously at the triggering update
//   - loops iterate over a snapshot of the collection taken when the
//     loop starts
//
// Global relations and maps are created empty from the program's
// declarations. Counted relations (result relations of incrementalized
// comprehensions) are refcounted sets.
//
// LIMITS:
//
// Every executed statement counts against the step quota (WithMaxSteps)
// and checks the context for cancellation. A maintenance procedure that
// re-enters itself for the same element fails with CYCLE_DETECTED.
// Violated collection preconditions fail with CONTRACT_VIOLATION; in
// compiled code they indicate a maintenance bug.
package engine
