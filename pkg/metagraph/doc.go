/*
Package metagraph models systems as keyed directed graphs and builds
lazily evaluated, object-like views over them.

# Overview

metagraph has four parts:
  - Graph: an immutable keyed directed graph built from a raw Spec
  - Dataflow: a graph of calc functions evaluated on demand and memoized
    per instance
  - Pattern: a compiler that turns an interface graph of kinds and
    behaviors, plus a dataflow, into kind definitions whose members read
    their dependencies from the dataflow
  - TopologicalSort: a deterministic ordering of graph nodes

# Graphs

Build validates a Spec and returns an immutable Graph:

	g, err := metagraph.Build(metagraph.Spec{
	    Nodes: []metagraph.NodeSpec{{Key: "a"}, {Key: "b"}},
	    Edges: []metagraph.EdgeSpec{metagraph.NewEdge("ab", "a", "b", nil)},
	})

Every violation (duplicate key, dangling endpoint, invalid key) is
reported; errors.Is works against each sentinel.

# Dataflows

A dataflow node holds a CalcFunc that receives its predecessors' values
in in-edge order:

	df, err := metagraph.NewDataflow(g)
	flow := df.Instantiate(map[string]any{"data": record.Record{"x": 2}})
	v, err := flow.Calc("b")

Each calc runs at most once per Flow; falsy values such as 0 or "" are
memoized like any other.

# Patterns

Compile takes a PatternSpec. Interface nodes are kinds; an interface edge
that carries a BehaviorSpec adds a member to its source kind. Members read
their dependencies from the instance's flow when called:

	p, err := metagraph.GraphPattern()
	inst, err := p.Instantiate(metagraph.GraphData(spec))
	graph, err := inst.Root(metagraph.KindGraph)
	nodes, err := graph.Call("nodes")

# Observability

WithLogger, WithMetrics and WithTracing enable slog logging, OpenTelemetry
metrics and OpenTelemetry spans. All three are off by default.

# Thread Safety

Graph, Dataflow and Pattern are immutable after construction and safe for
concurrent use. Flow and Instance are single-goroutine values; create one
per goroutine.
*/
package metagraph
