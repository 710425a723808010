package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

// dependencyGraph maps a query name to the queries its definition
// mentions.
type dependencyGraph struct {
	nodes []string
	edges map[string][]string
}

// buildDependencyGraph constructs the query dependency graph over every
// query of tab, in definition order.
func buildDependencyGraph(tab *symtab.Table) *dependencyGraph {
	g := &dependencyGraph{edges: make(map[string][]string)}
	for _, sym := range tab.Queries() {
		g.nodes = append(g.nodes, sym.Name)
		seen := make(map[string]bool)
		g.edges[sym.Name] = []string{}
		if sym.Node == nil {
			continue
		}
		for _, q := range incast.FindQueries(sym.Node) {
			if !seen[q.Name] {
				seen[q.Name] = true
				g.edges[sym.Name] = append(g.edges[sym.Name], q.Name)
			}
		}
	}
	return g
}

// hasSelfLoop checks if a node has an edge to itself.
func (g *dependencyGraph) hasSelfLoop(node string) bool {
	for _, neighbor := range g.edges[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Components are returned in reverse topological order: every component
// comes after the components it has edges to. Single-node SCCs without
// self-loops are NOT cycles.
func tarjanSCC(g *dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// CycleError reports queries whose definitions depend on each other.
type CycleError struct {
	Path []string `json:"path"` // e.g. ["Q1", "Q2", "Q1"]
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic query dependency: %s", strings.Join(e.Path, " → "))
}

// QueryOrder returns the names of all queries of tab ordered so that
// every query comes after the queries its definition mentions. A query
// that depends on itself, directly or through others, is an error.
func QueryOrder(tab *symtab.Table) ([]string, error) {
	g := buildDependencyGraph(tab)
	var order []string
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || g.hasSelfLoop(scc[0]) {
			return nil, &CycleError{Path: reconstructCyclePath(scc, g)}
		}
		order = append(order, scc[0])
	}
	return order, nil
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at first node in SCC, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, g *dependencyGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}
	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, neighbor := range g.edges[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
