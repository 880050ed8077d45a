// SPDX-License-Identifier: MPL-2.0

// Package dag orders the modules of a build so that every module comes after
// the modules it requires. Circular requires are legal at runtime, so a cycle
// is reported to the caller rather than treated as fatal.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError reports that the graph has no topological order.
	CycleError struct {
		// Cycle is one closed path through the graph, first node repeated at
		// the end (for example a -> b -> a).
		Cycle []string
		// Remaining lists every node that could not be ordered, in insertion
		// order.
		Remaining []string
	}

	// Graph is a directed graph keyed by module id. An edge from A to B means
	// A must be evaluated before B.
	Graph struct {
		adjacency map[string][]string
		edgeSet   map[[2]string]bool
		// nodes keeps insertion order for deterministic output.
		nodes   []string
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("require cycle: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		edgeSet:   make(map[[2]string]bool),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that from must be evaluated before to. Both nodes are
// added implicitly; repeated edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	key := [2]string{from, to}
	if g.edgeSet[key] {
		return
	}
	g.edgeSet[key] = true
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// TopologicalSort returns an order using Kahn's algorithm. Nodes at the same
// level keep their insertion order. When the graph has a cycle the partial
// order is returned together with a *CycleError.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) == len(g.nodes) {
		return result, nil
	}

	var remaining []string
	for _, node := range g.nodes {
		if inDegree[node] > 0 {
			remaining = append(remaining, node)
		}
	}
	return result, &CycleError{Cycle: g.findCycle(remaining, inDegree), Remaining: remaining}
}

// findCycle walks forward from the first unordered node along edges that
// stay inside the unordered set until a node repeats. Nodes that only lead
// out of every cycle (dependents of a cycle) are pruned first so the walk
// never dead-ends.
func (g *Graph) findCycle(remaining []string, inDegree map[string]int) []string {
	alive := make(map[string]bool, len(remaining))
	for _, n := range remaining {
		alive[n] = true
	}
	next := func(n string) (string, bool) {
		for _, m := range g.adjacency[n] {
			if inDegree[m] > 0 && alive[m] {
				return m, true
			}
		}
		return "", false
	}
	for pruned := true; pruned; {
		pruned = false
		for _, n := range remaining {
			if _, ok := next(n); alive[n] && !ok {
				alive[n] = false
				pruned = true
			}
		}
	}

	for _, start := range remaining {
		if !alive[start] {
			continue
		}
		pos := map[string]int{}
		var path []string
		for node := start; ; {
			if i, seen := pos[node]; seen {
				return append(path[i:], node)
			}
			pos[node] = len(path)
			path = append(path, node)
			node, _ = next(node)
		}
	}
	return remaining
}
