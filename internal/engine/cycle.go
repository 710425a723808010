package engine

import (
	"strings"

	"github.com/roach88/incoq/internal/rt"
)

// CallGuard tracks the maintenance procedures currently executing and
// the element each was called for.
//
// Maintenance cascades are acyclic in correct compiled code: a procedure
// for result relation R runs only in response to an update of a relation
// R depends on. A procedure re-entered for the same element while still
// active would recurse forever, so the guard reports it instead.
type CallGuard struct {
	active map[string]int
}

// NewCallGuard creates an empty guard.
func NewCallGuard() *CallGuard {
	return &CallGuard{active: make(map[string]int)}
}

// guarded reports whether calls to fn are tracked.
func guarded(fn string) bool {
	return strings.HasPrefix(fn, "_maint_")
}

func callKey(fn string, args []rt.Value) string {
	return fn + ":" + rt.Key(rt.Tuple(args))
}

// Enter records a call. It returns false if the same call is already
// active.
func (g *CallGuard) Enter(fn string, args []rt.Value) bool {
	if !guarded(fn) {
		return true
	}
	k := callKey(fn, args)
	if g.active[k] > 0 {
		return false
	}
	g.active[k]++
	return true
}

// Exit removes a call recorded by Enter.
func (g *CallGuard) Exit(fn string, args []rt.Value) {
	if !guarded(fn) {
		return
	}
	k := callKey(fn, args)
	if g.active[k]--; g.active[k] <= 0 {
		delete(g.active, k)
	}
}

// Depth returns the number of active guarded calls.
func (g *CallGuard) Depth() int {
	return len(g.active)
}
