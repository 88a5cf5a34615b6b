package metagraph

import (
	"fmt"
	"slices"
)

// Kind names of the built-in graph pattern.
const (
	KindGraph = "Graph"
	KindNode  = "Node"
	KindEdge  = "Edge"
)

// GraphPattern compiles the built-in pattern that presents a graph
// document as linked Graph, Node and Edge objects.
//
// Instance data uses the keys "Graph" (metadata), "Node" and "Edge" (node
// and edge records, see GraphData). The root Graph object exposes:
//
//	nodes, edges      all node/edge objects in declaration order
//	node(key), edge(key)
//	model             the underlying *Graph
//
// Node objects expose key, value, graph, ins and outs; Edge objects expose
// key, value, graph, source and target. Navigation returns the same object
// for the same element within one instance, so node.graph() is the root.
func GraphPattern(opts ...Option) (*Pattern, error) {
	return Compile(PatternSpec{
		Interface: graphInterface(),
		Dataflow:  graphDataflow(),
		Roots:     map[string]any{KindGraph: "root"},
		Eager:     []any{"model"},
	}, nil, opts...)
}

// InstantiateGraph compiles the graph pattern, binds data and returns the
// root Graph object.
func InstantiateGraph(data map[string]any, opts ...Option) (*Object, error) {
	p, err := GraphPattern(opts...)
	if err != nil {
		return nil, err
	}
	inst, err := p.Instantiate(data, opts...)
	if err != nil {
		return nil, err
	}
	return inst.Root(KindGraph)
}

func graphInterface() Spec {
	describe := []ClassMemberSpec{
		{Name: "name", Factory: classMember(func(d *Definition) (any, error) { return d.Kind(), nil })},
		{Name: "members", Factory: classMember(func(d *Definition) (any, error) { return d.Members(), nil })},
	}
	return Spec{
		Meta: map[string]any{"name": "graph"},
		Nodes: []NodeSpec{
			{Key: KindGraph, Value: KindSpec{
				Members:      []MemberSpec{{Name: "model", Factory: valueMember(func(v any) (any, error) { return asGraph(v) })}},
				ClassMembers: describe,
			}},
			{Key: KindNode, Value: KindSpec{
				Members: []MemberSpec{
					{Name: "key", Factory: valueMember(func(v any) (any, error) {
						n, err := asNode(v)
						if err != nil {
							return nil, err
						}
						return n.Key(), nil
					})},
					{Name: "value", Factory: valueMember(func(v any) (any, error) {
						n, err := asNode(v)
						if err != nil {
							return nil, err
						}
						return n.Value(), nil
					})},
				},
				ClassMembers: describe,
			}},
			{Key: KindEdge, Value: KindSpec{
				Members: []MemberSpec{
					{Name: "key", Factory: valueMember(func(v any) (any, error) {
						e, err := asEdge(v)
						if err != nil {
							return nil, err
						}
						return e.Key(), nil
					})},
					{Name: "value", Factory: valueMember(func(v any) (any, error) {
						e, err := asEdge(v)
						if err != nil {
							return nil, err
						}
						return e.Value(), nil
					})},
				},
				ClassMembers: describe,
			}},
		},
		Edges: []EdgeSpec{
			BehaviorEdge(KindGraph, KindNode, BehaviorSpec{Name: "nodes", Deps: []any{"nodes"}, Factory: listBehavior}),
			BehaviorEdge(KindGraph, KindEdge, BehaviorSpec{Name: "edges", Deps: []any{"edges"}, Factory: listBehavior}),
			BehaviorEdge(KindGraph, KindNode, BehaviorSpec{Name: "node", Deps: []any{"node_index"}, Factory: lookupBehavior(KindNode)}),
			BehaviorEdge(KindGraph, KindEdge, BehaviorSpec{Name: "edge", Deps: []any{"edge_index"}, Factory: lookupBehavior(KindEdge)}),
			BehaviorEdge(KindNode, KindGraph, BehaviorSpec{Name: "graph", Deps: []any{"root"}, Factory: rootBehavior}),
			BehaviorEdge(KindNode, KindEdge, BehaviorSpec{Name: "ins", Deps: []any{"edge_index"}, Factory: incidentBehavior((*Node).Ins)}),
			BehaviorEdge(KindNode, KindEdge, BehaviorSpec{Name: "outs", Deps: []any{"edge_index"}, Factory: incidentBehavior((*Node).Outs)}),
			BehaviorEdge(KindEdge, KindGraph, BehaviorSpec{Name: "graph", Deps: []any{"root"}, Factory: rootBehavior}),
			BehaviorEdge(KindEdge, KindNode, BehaviorSpec{Name: "source", Deps: []any{"node_index"}, Factory: endpointBehavior((*Edge).SourceKey)}),
			BehaviorEdge(KindEdge, KindNode, BehaviorSpec{Name: "target", Deps: []any{"node_index"}, Factory: endpointBehavior((*Edge).TargetKey)}),
		},
	}
}

func graphDataflow() Spec {
	return Spec{
		Nodes: []NodeSpec{
			{Key: "model", Value: CalcFunc(modelCalc)},
			{Key: "nodes", Value: CalcFactory(func(p *Pattern) CalcFunc {
				return wrapAll(p, KindNode, func(g *Graph) []any { return anySlice(g.Nodes()) })
			})},
			{Key: "edges", Value: CalcFactory(func(p *Pattern) CalcFunc {
				return wrapAll(p, KindEdge, func(g *Graph) []any { return anySlice(g.Edges()) })
			})},
			{Key: "node_index", Value: CalcFunc(indexCalc(func(v any) any { return v.(*Node).Key() }))},
			{Key: "edge_index", Value: CalcFunc(indexCalc(func(v any) any { return v.(*Edge).Key() }))},
			{Key: "root", Value: CalcFactory(func(p *Pattern) CalcFunc {
				return func(f *Flow, args ...any) (any, error) {
					def, err := p.Definition(KindGraph)
					if err != nil {
						return nil, err
					}
					return def.Wrap(f, args[0]), nil
				}
			})},
		},
		Edges: []EdgeSpec{
			NewEdge("model:nodes", "model", "nodes", nil),
			NewEdge("model:edges", "model", "edges", nil),
			NewEdge("nodes:node_index", "nodes", "node_index", nil),
			NewEdge("edges:edge_index", "edges", "edge_index", nil),
			NewEdge("model:root", "model", "root", nil),
		},
	}
}

// modelCalc builds the core graph from the instance data.
func modelCalc(f *Flow, _ ...any) (any, error) {
	meta, err := f.Input("data", KindGraph)
	if err != nil {
		return nil, err
	}
	nodes, err := f.Input("data", KindNode)
	if err != nil {
		return nil, err
	}
	edges, err := f.Input("data", KindEdge)
	if err != nil {
		return nil, err
	}
	spec, err := specFromParts(meta, nodes, edges)
	if err != nil {
		return nil, err
	}
	return Build(spec)
}

func wrapAll(p *Pattern, kind string, items func(*Graph) []any) CalcFunc {
	return func(f *Flow, args ...any) (any, error) {
		g, err := asGraph(args[0])
		if err != nil {
			return nil, err
		}
		def, err := p.Definition(kind)
		if err != nil {
			return nil, err
		}
		values := items(g)
		out := make([]*Object, len(values))
		for i, v := range values {
			out[i] = def.Wrap(f, v)
		}
		return out, nil
	}
}

func indexCalc(key func(any) any) CalcFunc {
	return func(_ *Flow, args ...any) (any, error) {
		objs, ok := args[0].([]*Object)
		if !ok {
			return nil, fmt.Errorf("%w: expected []*Object, got %T", ErrInvalidSpec, args[0])
		}
		index := make(map[any]*Object, len(objs))
		for _, o := range objs {
			index[key(o.Value())] = o
		}
		return index, nil
	}
}

func valueMember(fn func(v any) (any, error)) MemberFactory {
	return func(_ *Dataflow, _ *Node) (*Behavior, error) {
		return &Behavior{Body: func(b Binding, _ []any, _ ...any) (any, error) {
			return fn(b.Value)
		}}, nil
	}
}

func classMember(fn ClassMember) ClassMemberFactory {
	return func(_ *Dataflow, _ *Node) (ClassMember, error) {
		return fn, nil
	}
}

func listBehavior(_ *Dataflow, _ *Edge) (BehaviorFunc, error) {
	return func(_ Binding, deps []any, _ ...any) (any, error) {
		objs, ok := deps[0].([]*Object)
		if !ok {
			return nil, fmt.Errorf("%w: expected []*Object, got %T", ErrInvalidSpec, deps[0])
		}
		return slices.Clone(objs), nil
	}, nil
}

func lookupBehavior(kind string) BehaviorFactory {
	return func(_ *Dataflow, _ *Edge) (BehaviorFunc, error) {
		return func(_ Binding, deps []any, args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("%w: expected 1 key argument, got %d", ErrInvalidSpec, len(args))
			}
			return lookup(deps[0], kind, args[0])
		}, nil
	}
}

func rootBehavior(_ *Dataflow, _ *Edge) (BehaviorFunc, error) {
	return func(_ Binding, deps []any, _ ...any) (any, error) {
		return deps[0], nil
	}, nil
}

func incidentBehavior(edges func(*Node) []*Edge) BehaviorFactory {
	return func(_ *Dataflow, _ *Edge) (BehaviorFunc, error) {
		return func(b Binding, deps []any, _ ...any) (any, error) {
			n, err := asNode(b.Value)
			if err != nil {
				return nil, err
			}
			incident := edges(n)
			out := make([]*Object, 0, len(incident))
			for _, e := range incident {
				o, err := lookup(deps[0], KindEdge, e.Key())
				if err != nil {
					return nil, err
				}
				out = append(out, o.(*Object))
			}
			return out, nil
		}, nil
	}
}

func endpointBehavior(endpoint func(*Edge) any) BehaviorFactory {
	return func(_ *Dataflow, _ *Edge) (BehaviorFunc, error) {
		return func(b Binding, deps []any, _ ...any) (any, error) {
			e, err := asEdge(b.Value)
			if err != nil {
				return nil, err
			}
			return lookup(deps[0], KindNode, endpoint(e))
		}, nil
	}
}

func lookup(index any, kind string, key any) (any, error) {
	objs, ok := index.(map[any]*Object)
	if !ok {
		return nil, fmt.Errorf("%w: expected index, got %T", ErrInvalidSpec, index)
	}
	if checkKey(key) == nil {
		if o, ok := objs[key]; ok {
			return o, nil
		}
	}
	return nil, &KeyError{Kind: kind, Key: key, Err: ErrKeyNotFound}
}

func asGraph(v any) (*Graph, error) {
	if g, ok := v.(*Graph); ok && g != nil {
		return g, nil
	}
	return nil, fmt.Errorf("%w: expected *Graph, got %T", ErrInvalidSpec, v)
}

func asNode(v any) (*Node, error) {
	if n, ok := v.(*Node); ok && n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: expected *Node, got %T", ErrInvalidSpec, v)
}

func asEdge(v any) (*Edge, error) {
	if e, ok := v.(*Edge); ok && e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w: expected *Edge, got %T", ErrInvalidSpec, v)
}

func anySlice[T any](items []T) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}
