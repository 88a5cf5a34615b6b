package metagraph

import (
	"fmt"

	"github.com/randalmurphal/metagraph/pkg/metagraph/record"
)

// Shared fixtures

// fixtureSpec returns nodes a,b,c,d with edges e:a->b, f:a->c (n=42), g:c->d.
func fixtureSpec() Spec {
	return Spec{
		Meta: record.Record{"name": "fixture"},
		Nodes: []NodeSpec{
			{Key: "a"},
			{Key: "b"},
			{Key: "c", Value: record.Record{"n": 17}},
			{Key: "d"},
		},
		Edges: []EdgeSpec{
			NewEdge("e", "a", "b", nil),
			NewEdge("f", "a", "c", record.Record{"n": 42}),
			NewEdge("g", "c", "d", nil),
		},
	}
}

// edgesSpec builds a spec from node keys and "src->tgt" style pairs.
func edgesSpec(nodes []any, pairs [][2]any) Spec {
	spec := Spec{}
	for _, k := range nodes {
		spec.Nodes = append(spec.Nodes, NodeSpec{Key: k})
	}
	for i, p := range pairs {
		spec.Edges = append(spec.Edges, NewEdge(fmt.Sprintf("e%d", i), p[0], p[1], nil))
	}
	return spec
}

func nodeKeys(nodes []*Node) []any {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = n.Key()
	}
	return out
}

func edgeKeys(edges []*Edge) []any {
	out := make([]any, len(edges))
	for i, e := range edges {
		out[i] = e.Key()
	}
	return out
}

// constCalc returns a calc that always yields v.
func constCalc(v any) CalcFunc {
	return func(_ *Flow, _ ...any) (any, error) { return v, nil }
}

// countingCalc wraps fn and counts its invocations.
func countingCalc(count *int, fn CalcFunc) CalcFunc {
	return func(f *Flow, args ...any) (any, error) {
		*count++
		return fn(f, args...)
	}
}

// sumCalc adds integer arguments.
func sumCalc(_ *Flow, args ...any) (any, error) {
	total := 0
	for _, a := range args {
		total += a.(int)
	}
	return total, nil
}

// chainDataflow builds n calcs where calc i depends on calc i-1 and adds one.
func chainDataflow(n int, opts ...Option) (*Dataflow, error) {
	spec := Spec{}
	for i := 0; i < n; i++ {
		fn := CalcFunc(func(_ *Flow, args ...any) (any, error) {
			if len(args) == 0 {
				return 0, nil
			}
			return args[0].(int) + 1, nil
		})
		spec.Nodes = append(spec.Nodes, NodeSpec{Key: i, Value: fn})
		if i > 0 {
			spec.Edges = append(spec.Edges, NewEdge(fmt.Sprintf("%d->%d", i-1, i), i-1, i, nil))
		}
	}
	g, err := Build(spec)
	if err != nil {
		return nil, err
	}
	return NewDataflow(g, opts...)
}
