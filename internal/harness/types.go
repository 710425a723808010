package harness

import (
	"github.com/roach88/incoq/internal/compiler"
	"github.com/roach88/incoq/internal/engine"
)

// QueryResult records the decisions the compiler made for one query.
type QueryResult struct {
	Name         string   `json:"name"`
	Impl         string   `json:"impl"`
	Params       []string `json:"params"`
	DemandParams []string `json:"demand_params,omitempty"`
	Result       string   `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	RunID string `json:"run_id"`

	// Output is what the compiled program printed. Reference is what the
	// original program printed; the two must agree.
	Output    []string `json:"output"`
	Reference []string `json:"reference,omitempty"`
	Steps     int      `json:"steps"`

	// Trace holds the collection updates of the compiled run in order.
	Trace []engine.Event `json:"trace"`

	// State maps every relation and map of the compiled program to its
	// formatted final value.
	State map[string]string `json:"state,omitempty"`

	Queries    []QueryResult `json:"queries,omitempty"`
	OutputHash string        `json:"output_hash"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`

	Compiled *compiler.Result `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.Event{},
		Errors: []string{},
		State:  make(map[string]string),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
