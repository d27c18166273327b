package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// CycleError reports instructions that depend on each other after the
// sequencer has dropped every edge it can prove harmless. Navigation cannot
// proceed on such a survey.
type CycleError struct {
	// Cycles holds one closed path per strongly connected component,
	// e.g. ["Q1.value", "Q2.value", "Q1.value"].
	Cycles [][]string `json:"cycles"`
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = strings.Join(c, " -> ")
	}
	return fmt.Sprintf("dependency cycle: %s", strings.Join(parts, "; "))
}

// dependencyGraph maps an instruction ("Component.code") to the
// instructions it reads.
type dependencyGraph map[string][]string

// findCycles returns a closed path for every cycle in the graph, or nil.
func findCycles(graph dependencyGraph) [][]string {
	var cycles [][]string
	for _, scc := range tarjanSCC(graph) {
		switch {
		case len(scc) > 1:
			cycles = append(cycles, reconstructCyclePath(scc, graph))
		case hasSelfLoop(scc[0], graph):
			cycles = append(cycles, []string{scc[0], scc[0]})
		}
	}
	slices.SortFunc(cycles, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return cycles
}

// checkCycles flags every active instruction on a cycle that no layout can
// break. The graph drops the edges the sequencer may prune at runtime:
// reads between prioritised states, and the guard reads of not_skipped
// fragments that carry an order condition.
func (c *compilation) checkCycles() {
	present := make(map[string]ir.Dependent)
	ir.Walk(c.survey, func(n ir.Node) bool {
		if n.Component.HasErrors() {
			return false
		}
		for _, ins := range n.Component.Instructions() {
			if st, ok := ir.AsState(ins); ok && st.Active && !ir.HasErrors(ins) {
				d := ir.Dependent{Component: n.Code, Code: st.Code}
				present[d.String()] = d
			}
		}
		return true
	})

	graph := make(dependencyGraph, len(present))
	for key, d := range present {
		var drop map[ir.Dependent]bool
		if d.Code == ir.CodeNotSkipped.String() {
			drop = guardReads(c.manifesto[d.Component], orderConditioned)
		}
		graph[key] = nil
		for _, dep := range c.deps[d] {
			t := ir.Dependent{Component: dep.Component, Code: dep.Code.String()}
			if _, ok := present[t.String()]; !ok || t == d || drop[t] || rivalEdge(d, t) {
				continue
			}
			graph[key] = append(graph[key], t.String())
		}
	}

	for _, scc := range tarjanSCC(graph) {
		if len(scc) < 2 {
			continue
		}
		cycle := ir.NewDependencyCycle(reconstructCyclePath(scc, graph))
		for _, member := range scc {
			c.addError(present[member], cycle)
		}
	}
}

func orderConditioned(t ir.SkipTarget) bool {
	return t.FromOrderNecessary || t.ToOrderNecessary
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components. Nodes are visited in
// sorted order so results are stable.
func tarjanSCC(graph dependencyGraph) [][]string {
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

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

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
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath finds a closed path through the SCC starting at its
// first member, by depth-first search restricted to SCC members.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := scc[0]
	visited := make(map[string]bool)
	var path []string

	var dfs func(string) bool
	dfs = func(v string) bool {
		path = append(path, v)
		visited[v] = true
		for _, w := range graph[v] {
			if w == start {
				path = append(path, w)
				return true
			}
			if members[w] && !visited[w] && dfs(w) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}
	if !dfs(start) {
		return []string{start}
	}
	return path
}
