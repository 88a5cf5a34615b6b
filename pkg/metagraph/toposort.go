package metagraph

import (
	"github.com/randalmurphal/metagraph/pkg/metagraph/observability"
)

// TopologicalSort orders the nodes of g so that every edge's source comes
// before its target.
//
// Nodes with no remaining in-edges are emitted first-in first-out, seeded
// in declaration order, so the result is deterministic for a given spec.
// When the graph has a cycle no order is returned and the error is a
// *CycleError listing the nodes that could not be placed.
func TopologicalSort(g *Graph, opts ...Option) ([]*Node, error) {
	cfg := newConfig(opts)

	indegree := make([]int, len(g.nodes))
	queue := make([]int, 0, len(g.nodes))
	for i, n := range g.nodes {
		indegree[i] = len(n.ins)
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]*Node, 0, len(g.nodes))
	for head := 0; head < len(queue); head++ {
		n := g.nodes[queue[head]]
		order = append(order, n)
		for _, ei := range n.outs {
			t := g.edges[ei].target
			indegree[t]--
			if indegree[t] == 0 {
				queue = append(queue, t)
			}
		}
	}

	if len(order) < len(g.nodes) {
		cycle := &CycleError{GraphID: g.id}
		for i, n := range g.nodes {
			if indegree[i] > 0 {
				cycle.Remaining = append(cycle.Remaining, n.key)
			}
		}
		observability.LogSort(cfg.logger, g.id, len(g.nodes), cycle)
		return nil, cycle
	}

	observability.LogSort(cfg.logger, g.id, len(g.nodes), nil)
	return order, nil
}

// IsTopologicallySorted reports whether order holds every node of g exactly
// once with each edge's source before its target.
func IsTopologicallySorted(g *Graph, order []*Node) bool {
	if len(order) != len(g.nodes) {
		return false
	}
	position := make([]int, len(g.nodes))
	seen := make([]bool, len(g.nodes))
	for pos, n := range order {
		if n == nil || n.graph != g || seen[n.index] {
			return false
		}
		seen[n.index] = true
		position[n.index] = pos
	}
	for _, e := range g.edges {
		if position[e.source] >= position[e.target] {
			return false
		}
	}
	return true
}
