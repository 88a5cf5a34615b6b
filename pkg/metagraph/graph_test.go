package metagraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/metagraph/pkg/metagraph/record"
)

// TestBuild_Fixture checks declaration order, adjacency and lookups.
func TestBuild_Fixture(t *testing.T) {
	g, err := Build(fixtureSpec())
	require.NoError(t, err)

	assert.Equal(t, []any{"a", "b", "c", "d"}, nodeKeys(g.Nodes()))
	assert.Equal(t, []any{"e", "f", "g"}, edgeKeys(g.Edges()))
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, 3, g.EdgeCount())

	a, err := g.Node("a")
	require.NoError(t, err)
	assert.Equal(t, []any{"e", "f"}, edgeKeys(a.Outs()))
	assert.Empty(t, a.Ins())

	d, err := g.Node("d")
	require.NoError(t, err)
	assert.Empty(t, d.Outs())

	b, err := g.Node("b")
	require.NoError(t, err)
	assert.Equal(t, []any{"e"}, edgeKeys(b.Ins()))

	f, err := g.Edge("f")
	require.NoError(t, err)
	assert.Equal(t, "a", f.Source().Key())
	assert.Equal(t, 42, f.Value()["n"])

	e, err := g.Edge("g")
	require.NoError(t, err)
	assert.Equal(t, "d", e.Target().Key())
	assert.Equal(t, "c", e.SourceKey())
	assert.Equal(t, "d", e.TargetKey())

	assert.Equal(t, "fixture", g.Meta().String("name", ""))
	assert.NotEmpty(t, g.ID())
}

// TestBuild_InsOutsMatchEdgeOrder checks ins/outs are subsequences of Edges.
func TestBuild_InsOutsMatchEdgeOrder(t *testing.T) {
	g, err := Build(edgesSpec(
		[]any{1, 2, 3},
		[][2]any{{1, 2}, {3, 2}, {1, 3}, {2, 3}, {1, 2}},
	))
	require.NoError(t, err)

	for _, n := range g.Nodes() {
		var outs, ins []any
		for _, e := range g.Edges() {
			if e.Source() == n {
				outs = append(outs, e.Key())
			}
			if e.Target() == n {
				ins = append(ins, e.Key())
			}
		}
		assert.Equal(t, len(outs), len(n.Outs()), "node %v", n.Key())
		assert.Equal(t, len(ins), len(n.Ins()), "node %v", n.Key())
		if len(outs) > 0 {
			assert.Equal(t, outs, edgeKeys(n.Outs()))
		}
		if len(ins) > 0 {
			assert.Equal(t, ins, edgeKeys(n.Ins()))
		}
	}
}

// TestBuild_Identity checks handles belong to exactly one graph.
func TestBuild_Identity(t *testing.T) {
	g1, err := Build(fixtureSpec())
	require.NoError(t, err)
	g2, err := Build(fixtureSpec())
	require.NoError(t, err)

	assert.NotEqual(t, g1.ID(), g2.ID())
	for i, n := range g1.Nodes() {
		other := g2.Nodes()[i]
		assert.Same(t, g1, n.Graph())
		assert.NotSame(t, n, other)
		assert.Equal(t, n.Key(), other.Key())
		assert.Equal(t, n.Value(), other.Value())
	}
	for i, e := range g1.Edges() {
		assert.Same(t, g1, e.Graph())
		assert.NotSame(t, e, g2.Edges()[i])
	}

	a1, _ := g1.Node("a")
	a2, _ := g1.Node("a")
	assert.Same(t, a1, a2)
}

// TestBuild_Errors tests validation failures.
func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want []error
	}{
		{
			name: "duplicate node",
			spec: Spec{Nodes: []NodeSpec{{Key: "a"}, {Key: "a"}}},
			want: []error{ErrDuplicateKey},
		},
		{
			name: "duplicate edge",
			spec: Spec{
				Nodes: []NodeSpec{{Key: "a"}, {Key: "b"}},
				Edges: []EdgeSpec{NewEdge("e", "a", "b", nil), NewEdge("e", "b", "a", nil)},
			},
			want: []error{ErrDuplicateKey},
		},
		{
			name: "dangling target",
			spec: Spec{
				Nodes: []NodeSpec{{Key: "a"}},
				Edges: []EdgeSpec{NewEdge("e", "a", "zz", nil)},
			},
			want: []error{ErrDanglingReference},
		},
		{
			name: "missing endpoints",
			spec: Spec{
				Nodes: []NodeSpec{{Key: "a"}},
				Edges: []EdgeSpec{{Key: "e"}},
			},
			want: []error{ErrDanglingReference},
		},
		{
			name: "nil key",
			spec: Spec{Nodes: []NodeSpec{{Key: nil}}},
			want: []error{ErrInvalidKey},
		},
		{
			name: "uncomparable key",
			spec: Spec{Nodes: []NodeSpec{{Key: []string{"a"}}}},
			want: []error{ErrInvalidKey},
		},
		{
			name: "all violations reported",
			spec: Spec{
				Nodes: []NodeSpec{{Key: "a"}, {Key: "a"}},
				Edges: []EdgeSpec{NewEdge("e", "a", "missing", nil)},
			},
			want: []error{ErrDuplicateKey, ErrDanglingReference},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Build(tt.spec)
			require.Error(t, err)
			assert.Nil(t, g)
			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}
			var keyErr *KeyError
			assert.True(t, errors.As(err, &keyErr))
		})
	}
}

// TestBuild_NodesAndEdgesSeparateKeySpaces allows a node and edge to share a key.
func TestBuild_NodesAndEdgesSeparateKeySpaces(t *testing.T) {
	g, err := Build(Spec{
		Nodes: []NodeSpec{{Key: "x"}, {Key: "y"}},
		Edges: []EdgeSpec{NewEdge("x", "x", "y", nil)},
	})
	require.NoError(t, err)
	assert.True(t, g.HasNode("x"))
	assert.True(t, g.HasEdge("x"))
}

// TestGraph_Lookup tests KeyNotFound behavior.
func TestGraph_Lookup(t *testing.T) {
	g, err := Build(fixtureSpec())
	require.NoError(t, err)

	_, err = g.Node("zz")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = g.Edge("a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = g.Node([]int{1})
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.False(t, g.HasNode("e"))
	assert.False(t, g.HasEdge(nil))
}

// TestGraph_Immutable checks caller mutation does not reach the graph.
func TestGraph_Immutable(t *testing.T) {
	spec := fixtureSpec()
	g, err := Build(spec)
	require.NoError(t, err)

	spec.Meta["name"] = "changed"
	spec.Edges[1].Value["n"] = 0
	nodes := g.Nodes()
	nodes[0] = nil
	g.Meta()["name"] = "changed again"

	assert.Equal(t, "fixture", g.Meta().String("name", ""))
	f, _ := g.Edge("f")
	assert.Equal(t, 42, f.Value()["n"])
	assert.NotNil(t, g.Nodes()[0])
}

// TestBuild_Empty tests a graph with no nodes.
func TestBuild_Empty(t *testing.T) {
	g, err := Build(Spec{})
	require.NoError(t, err)
	assert.Empty(t, g.Nodes())
	assert.Empty(t, g.Edges())
	assert.Equal(t, record.Record{}, g.Meta())
}
