package testutil

// FixedRunIDGenerator generates the same run id every time.
//
// Engines built with it stamp every run, trace and recorded execution
// with one id, so repeated runs of a scenario produce byte-identical
// results for golden comparison.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// DefaultRunID is used when no id is given.
const DefaultRunID = "test-run-default"

// NewFixedRunIDGenerator creates a generator that always returns id.
//
// The id is typically set in the scenario YAML:
//
//	run_id: "sum-of-image-001"
//
// If id is empty, Generate() returns DefaultRunID.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
//
// Implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
