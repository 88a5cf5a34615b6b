package metagraph

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/randalmurphal/metagraph/pkg/metagraph/record"
)

// NodeSpec is the raw record for one node.
type NodeSpec struct {
	Key   any
	Value any
}

// EdgeSpec is the raw record for one edge. Value must carry the endpoint
// keys under "source" and "target"; any other fields are kept as edge data.
type EdgeSpec struct {
	Key   any
	Value record.Record
}

// NewEdge is shorthand for an EdgeSpec whose value holds source, target and extra.
func NewEdge(key, source, target any, extra record.Record) EdgeSpec {
	value := extra.Clone()
	value["source"] = source
	value["target"] = target
	return EdgeSpec{Key: key, Value: value}
}

// Spec is a raw graph specification: metadata plus ordered node and edge records.
type Spec struct {
	Meta  record.Record
	Nodes []NodeSpec
	Edges []EdgeSpec
}

// Graph is an immutable, keyed directed graph.
//
// Nodes and edges keep their declaration order. Every Node and Edge handle
// belongs to exactly one Graph; two graphs built from identical specs share
// no handles.
//
// Graph is safe for concurrent reads.
type Graph struct {
	id        string
	meta      record.Record
	nodes     []*Node
	edges     []*Edge
	nodeIndex map[any]int
	edgeIndex map[any]int
}

// Node is a handle to one node of a Graph.
type Node struct {
	graph *Graph
	index int
	key   any
	value any
	ins   []int
	outs  []int
}

// Edge is a handle to one edge of a Graph.
type Edge struct {
	graph  *Graph
	index  int
	key    any
	value  record.Record
	source int
	target int
}

// Build validates s and constructs a Graph.
//
// Validation checks:
//  1. Every key is non-nil and comparable
//  2. Node keys are unique; edge keys are unique
//  3. Every edge source and target names a declared node
//
// All violations are joined into the returned error and no graph is
// returned. Ins and outs are computed with one pass over the edges.
func Build(s Spec) (*Graph, error) {
	g := &Graph{
		id:        uuid.New().String(),
		meta:      s.Meta.Clone(),
		nodes:     make([]*Node, 0, len(s.Nodes)),
		edges:     make([]*Edge, 0, len(s.Edges)),
		nodeIndex: make(map[any]int, len(s.Nodes)),
		edgeIndex: make(map[any]int, len(s.Edges)),
	}

	var errs []error

	for _, ns := range s.Nodes {
		if err := checkKey(ns.Key); err != nil {
			errs = append(errs, &KeyError{Kind: "node", Key: ns.Key, Err: err})
			continue
		}
		if _, exists := g.nodeIndex[ns.Key]; exists {
			errs = append(errs, &KeyError{Kind: "node", Key: ns.Key, Err: ErrDuplicateKey})
			continue
		}
		g.nodeIndex[ns.Key] = len(g.nodes)
		g.nodes = append(g.nodes, &Node{graph: g, index: len(g.nodes), key: ns.Key, value: ns.Value})
	}

	for _, es := range s.Edges {
		if err := checkKey(es.Key); err != nil {
			errs = append(errs, &KeyError{Kind: "edge", Key: es.Key, Err: err})
			continue
		}
		if _, exists := g.edgeIndex[es.Key]; exists {
			errs = append(errs, &KeyError{Kind: "edge", Key: es.Key, Err: ErrDuplicateKey})
			continue
		}
		source, srcErr := g.endpoint(es.Value, "source")
		target, tgtErr := g.endpoint(es.Value, "target")
		if err := errors.Join(srcErr, tgtErr); err != nil {
			errs = append(errs, &KeyError{Kind: "edge", Key: es.Key, Err: err})
			continue
		}
		g.edgeIndex[es.Key] = len(g.edges)
		g.edges = append(g.edges, &Edge{
			graph:  g,
			index:  len(g.edges),
			key:    es.Key,
			value:  es.Value.Clone(),
			source: source,
			target: target,
		})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, e := range g.edges {
		src, tgt := g.nodes[e.source], g.nodes[e.target]
		src.outs = append(src.outs, e.index)
		tgt.ins = append(tgt.ins, e.index)
	}

	return g, nil
}

// endpoint resolves value[field] to a node index.
func (g *Graph) endpoint(value record.Record, field string) (int, error) {
	key, ok := value.Get(field)
	if !ok || checkKey(key) != nil {
		return 0, fmt.Errorf("%w: %s %v", ErrDanglingReference, field, key)
	}
	idx, ok := g.nodeIndex[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s %v", ErrDanglingReference, field, key)
	}
	return idx, nil
}

// checkKey rejects keys that cannot index a map.
func checkKey(key any) error {
	if key == nil {
		return fmt.Errorf("%w: nil", ErrInvalidKey)
	}
	if !reflect.TypeOf(key).Comparable() {
		return fmt.Errorf("%w: %T is not comparable", ErrInvalidKey, key)
	}
	return nil
}

// ID returns the unique identifier of this graph instance.
func (g *Graph) ID() string { return g.id }

// Meta returns a copy of the graph-level metadata.
func (g *Graph) Meta() record.Record { return g.meta.Clone() }

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns all edges in declaration order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node with the given key.
// Returns a *KeyError wrapping ErrKeyNotFound if absent.
func (g *Graph) Node(key any) (*Node, error) {
	if checkKey(key) == nil {
		if idx, ok := g.nodeIndex[key]; ok {
			return g.nodes[idx], nil
		}
	}
	return nil, &KeyError{Kind: "node", Key: key, Err: ErrKeyNotFound}
}

// Edge returns the edge with the given key.
// Returns a *KeyError wrapping ErrKeyNotFound if absent.
func (g *Graph) Edge(key any) (*Edge, error) {
	if checkKey(key) == nil {
		if idx, ok := g.edgeIndex[key]; ok {
			return g.edges[idx], nil
		}
	}
	return nil, &KeyError{Kind: "edge", Key: key, Err: ErrKeyNotFound}
}

// HasNode reports whether a node with the given key exists.
func (g *Graph) HasNode(key any) bool {
	_, err := g.Node(key)
	return err == nil
}

// HasEdge reports whether an edge with the given key exists.
func (g *Graph) HasEdge(key any) bool {
	_, err := g.Edge(key)
	return err == nil
}

// Key returns the node key.
func (n *Node) Key() any { return n.key }

// Value returns the caller-supplied node data, which may be nil.
func (n *Node) Value() any { return n.value }

// Graph returns the graph that owns this node.
func (n *Node) Graph() *Graph { return n.graph }

// Ins returns the edges targeting this node, in edge declaration order.
func (n *Node) Ins() []*Edge { return n.graph.edgesAt(n.ins) }

// Outs returns the edges leaving this node, in edge declaration order.
func (n *Node) Outs() []*Edge { return n.graph.edgesAt(n.outs) }

func (g *Graph) edgesAt(indexes []int) []*Edge {
	out := make([]*Edge, len(indexes))
	for i, idx := range indexes {
		out[i] = g.edges[idx]
	}
	return out
}

// String returns the node key.
func (n *Node) String() string { return fmt.Sprintf("Node(%v)", n.key) }

// Key returns the edge key.
func (e *Edge) Key() any { return e.key }

// Value returns the edge data, including "source" and "target".
// The returned record is shared; callers must not modify it.
func (e *Edge) Value() record.Record { return e.value }

// Graph returns the graph that owns this edge.
func (e *Edge) Graph() *Graph { return e.graph }

// SourceKey returns the key of the source node.
func (e *Edge) SourceKey() any { return e.graph.nodes[e.source].key }

// TargetKey returns the key of the target node.
func (e *Edge) TargetKey() any { return e.graph.nodes[e.target].key }

// Source returns the source node.
func (e *Edge) Source() *Node { return e.graph.nodes[e.source] }

// Target returns the target node.
func (e *Edge) Target() *Node { return e.graph.nodes[e.target] }

// String returns the edge key and endpoints.
func (e *Edge) String() string {
	return fmt.Sprintf("Edge(%v: %v -> %v)", e.key, e.SourceKey(), e.TargetKey())
}
