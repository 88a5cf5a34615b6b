package metagraph

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/metagraph/pkg/metagraph/record"
)

// depsBehavior returns the resolved dependencies followed by the call arguments.
func depsBehavior(_ *Dataflow, _ *Edge) (BehaviorFunc, error) {
	return func(_ Binding, deps []any, args ...any) (any, error) {
		return append(append([]any{}, deps...), args...), nil
	}, nil
}

// TestParseDependency tests dependency notation.
func TestParseDependency(t *testing.T) {
	tests := []struct {
		in    string
		want  DependencyRef
		input bool
	}{
		{"count", CalcRef("count"), false},
		{"data.x", InputRef("data", "x"), true},
		{"Node.value.n", InputRef("Node", "value.n"), true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseDependency(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.IsInput())
			assert.Equal(t, tt.in, got.String())
		})
	}
	assert.Equal(t, CalcRef(7), toDependency(7))
	assert.Equal(t, InputRef("a", "b"), toDependency(InputRef("a", "b")))
}

// TestBehavior_Invoke resolves dependencies before the body runs.
func TestBehavior_Invoke(t *testing.T) {
	df := buildDataflow(t, Spec{Nodes: []NodeSpec{{Key: "n", Value: constCalc(5)}}})
	flow := df.Instantiate(map[string]any{"data": record.Record{"x": "ex"}})

	b := &Behavior{
		Name:         "probe",
		Dependencies: []DependencyRef{CalcRef("n"), InputRef("data", "x")},
		Body: func(b Binding, deps []any, args ...any) (any, error) {
			return []any{b.Value, deps, args}, nil
		},
	}
	v, err := b.Invoke(Binding{Flow: flow, Value: "self"}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []any{"self", []any{5, "ex"}, []any{1, 2}}, v)

	_, err = b.Invoke(Binding{Value: "self"})
	assert.ErrorIs(t, err, ErrUnresolvedInput)

	bare := &Behavior{Name: "value"}
	v, err = bare.Invoke(Binding{Value: 9})
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

// namespacedSpec has kinds Order and Customer, each with its own dataflow.
func namespacedSpec() (PatternSpec, map[string]any) {
	iface := Spec{
		Nodes: []NodeSpec{
			{Key: "Order", Value: KindSpec{ClassMembers: []ClassMemberSpec{{
				Name: "label",
				Factory: func(_ *Dataflow, kind *Node) (ClassMember, error) {
					return func(def *Definition) (any, error) {
						return "kind " + def.Kind(), nil
					}, nil
				},
			}}}},
			{Key: "Customer"},
			{Key: "Empty"},
		},
		Edges: []EdgeSpec{
			BehaviorEdge("Order", "Customer", BehaviorSpec{Name: "total", Deps: []any{"total"}, Factory: depsBehavior}),
			BehaviorEdge("Order", "Customer", BehaviorSpec{Name: "customer", Deps: []any{"Customer.name"}, Factory: depsBehavior}),
			BehaviorEdge("Order", "Customer", BehaviorSpec{Name: "broken", Deps: []any{"missing"}, Factory: depsBehavior}),
			BehaviorEdge("Customer", "Order", BehaviorSpec{Name: "name", Deps: []any{"name"}, Factory: depsBehavior}),
			NewEdge("structural", "Customer", "Empty", nil),
		},
	}
	orders := Spec{
		Nodes: []NodeSpec{
			{Key: "price", Value: CalcFunc(func(f *Flow, _ ...any) (any, error) { return f.Input("data", "price") })},
			{Key: "qty", Value: CalcFunc(func(f *Flow, _ ...any) (any, error) { return f.Input("data", "qty") })},
			{Key: "total", Value: CalcFunc(func(_ *Flow, args ...any) (any, error) { return args[0].(int) * args[1].(int), nil })},
		},
		Edges: []EdgeSpec{
			NewEdge("p", "price", "total", nil),
			NewEdge("q", "qty", "total", nil),
		},
	}
	customers := Spec{
		Nodes: []NodeSpec{
			{Key: "name", Value: CalcFunc(func(f *Flow, _ ...any) (any, error) { return f.Input("data", "customer") })},
		},
	}
	return PatternSpec{Interface: iface, Eager: []any{"Order.total"}},
		map[string]any{"Order": orders, "Customer": customers}
}

// TestCompile_Namespaces tests per-namespace dataflows.
func TestCompile_Namespaces(t *testing.T) {
	spec, flows := namespacedSpec()
	p, err := Compile(spec, flows)
	require.NoError(t, err)

	assert.Equal(t, []string{"Order", "Customer", "Empty"}, p.Kinds())
	assert.NotNil(t, p.Dataflow("Order"))
	assert.Nil(t, p.Dataflow("Empty"))

	inst, err := p.Instantiate(map[string]any{"price": 3, "qty": 4, "customer": "ada"})
	require.NoError(t, err)
	assert.True(t, inst.NamespaceFlow("Order").Computed("total"), "eager calc computed")
	assert.Nil(t, inst.Flow())

	order, err := inst.Wrap("Order", "o-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", order.Value())

	total, err := order.Call("total", "arg")
	require.NoError(t, err)
	assert.Equal(t, []any{12, "arg"}, total)

	customer, err := order.Call("customer")
	require.NoError(t, err)
	assert.Equal(t, []any{"ada"}, customer)

	v, err := inst.Calc("Customer.name")
	require.NoError(t, err)
	assert.Equal(t, "ada", v)

	_, err = inst.Calc("total")
	assert.ErrorIs(t, err, ErrUnresolvedInput)
}

// TestCompile_DeferredResolution checks missing dependencies fail at call time.
func TestCompile_DeferredResolution(t *testing.T) {
	spec, flows := namespacedSpec()
	p, err := Compile(spec, flows)
	require.NoError(t, err)

	inst, err := p.Instantiate(map[string]any{"price": 1, "qty": 1})
	require.NoError(t, err)
	order, err := inst.Wrap("Order", nil)
	require.NoError(t, err)

	_, err = order.Call("broken")
	require.ErrorIs(t, err, ErrKeyNotFound)
	var behaviorErr *BehaviorError
	require.True(t, errors.As(err, &behaviorErr))
	assert.Equal(t, "Order", behaviorErr.Kind)
	assert.Equal(t, "broken", behaviorErr.Member)
}

// TestCompile_KindWithoutBehaviors checks an empty kind compiles.
func TestCompile_KindWithoutBehaviors(t *testing.T) {
	spec, flows := namespacedSpec()
	p, err := Compile(spec, flows)
	require.NoError(t, err)

	def, err := p.Definition("Empty")
	require.NoError(t, err)
	assert.Empty(t, def.Members())
	assert.Empty(t, def.ClassMembers())

	inst, err := p.Instantiate(map[string]any{"price": 1, "qty": 1, "Empty": "root value"})
	require.NoError(t, err)
	root, err := inst.Root("Empty")
	require.NoError(t, err)
	assert.Equal(t, "root value", root.Value())
	assert.Empty(t, root.Members())

	again, err := inst.Root("Empty")
	require.NoError(t, err)
	assert.Same(t, root, again)

	_, err = inst.Root("Nope")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

// TestCompile_ClassMembers checks class members are computed at compile time.
func TestCompile_ClassMembers(t *testing.T) {
	spec, flows := namespacedSpec()
	p, err := Compile(spec, flows)
	require.NoError(t, err)

	def, err := p.Definition("Order")
	require.NoError(t, err)
	assert.Equal(t, record.Record{"label": "kind Order"}, def.ClassMembers())

	node, err := p.Graph().Node("Order")
	require.NoError(t, err)
	assert.Equal(t, record.Record{"label": "kind Order"}, node.Value())

	structural, err := p.Graph().Edge("structural")
	require.NoError(t, err)
	assert.Equal(t, "Empty", structural.TargetKey())
}

// TestCompile_EagerFailure checks eager calcs fail instantiation.
func TestCompile_EagerFailure(t *testing.T) {
	spec, flows := namespacedSpec()
	p, err := Compile(spec, flows)
	require.NoError(t, err)

	_, err = p.Instantiate(map[string]any{"price": 1})
	require.ErrorIs(t, err, ErrComputationDefect)
}

// TestCompile_UnboundNamespaceWarns checks the compile-time warning.
func TestCompile_UnboundNamespaceWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	iface := Spec{
		Nodes: []NodeSpec{{Key: "Lonely"}},
		Edges: []EdgeSpec{BehaviorEdge("Lonely", "Lonely", BehaviorSpec{
			Name: "echo", Deps: []any{"data.x"}, Factory: depsBehavior,
		})},
	}
	p, err := Compile(PatternSpec{Interface: iface}, nil, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "echo")
	assert.Contains(t, buf.String(), "Lonely")

	// Input dependencies still resolve without a dataflow.
	inst, err := p.Instantiate(map[string]any{"x": "hello"})
	require.NoError(t, err)
	obj, err := inst.Wrap("Lonely", nil)
	require.NoError(t, err)
	v, err := obj.Call("echo")
	require.NoError(t, err)
	assert.Equal(t, []any{"hello"}, v)
}

// TestCompile_CalcFactory checks factories receive the compiled pattern.
func TestCompile_CalcFactory(t *testing.T) {
	iface := Spec{
		Nodes: []NodeSpec{{Key: "Item", Value: KindSpec{Members: []MemberSpec{{
			Name: "self",
			Factory: func(_ *Dataflow, _ *Node) (*Behavior, error) {
				return &Behavior{}, nil
			},
		}}}}},
		Edges: []EdgeSpec{BehaviorEdge("Item", "Item", BehaviorSpec{Name: "first", Deps: []any{"first"}, Factory: depsBehavior})},
	}
	dataflow := Spec{Nodes: []NodeSpec{
		{Key: "first", Value: CalcFactory(func(p *Pattern) CalcFunc {
			return func(f *Flow, _ ...any) (any, error) {
				def, err := p.Definition("Item")
				if err != nil {
					return nil, err
				}
				return def.Wrap(f, "first item"), nil
			}
		})},
	}}

	p, err := Compile(PatternSpec{Interface: iface, Dataflow: dataflow}, nil)
	require.NoError(t, err)
	inst, err := p.Instantiate(nil)
	require.NoError(t, err)

	item, err := inst.Wrap("Item", "x")
	require.NoError(t, err)
	v, err := item.Call("first")
	require.NoError(t, err)
	first := v.([]any)[0].(*Object)
	assert.Equal(t, "Item", first.Kind())
	assert.Equal(t, "first item", first.Value())

	self, err := first.Call("self")
	require.NoError(t, err)
	assert.Equal(t, "first item", self)
}

// TestCompile_Errors tests compile-time failures.
func TestCompile_Errors(t *testing.T) {
	failing := errors.New("factory failed")
	tests := []struct {
		name string
		spec PatternSpec
		want error
	}{
		{
			name: "no interface",
			spec: PatternSpec{},
			want: ErrInvalidSpec,
		},
		{
			name: "bad kind value",
			spec: PatternSpec{Interface: Spec{Nodes: []NodeSpec{{Key: "K", Value: 3}}}},
			want: ErrInvalidSpec,
		},
		{
			name: "bad behavior value",
			spec: PatternSpec{Interface: Spec{
				Nodes: []NodeSpec{{Key: "K"}},
				Edges: []EdgeSpec{NewEdge("K.x", "K", "K", record.Record{"behavior": "nope"})},
			}},
			want: ErrInvalidSpec,
		},
		{
			name: "duplicate member",
			spec: PatternSpec{Interface: Spec{
				Nodes: []NodeSpec{{Key: "K"}},
				Edges: []EdgeSpec{
					NewEdge("K.a", "K", "K", record.Record{"behavior": BehaviorSpec{Name: "x", Factory: depsBehavior}}),
					NewEdge("K.b", "K", "K", record.Record{"behavior": BehaviorSpec{Name: "x", Factory: depsBehavior}}),
				},
			}},
			want: ErrDuplicateKey,
		},
		{
			name: "factory error",
			spec: PatternSpec{Interface: Spec{
				Nodes: []NodeSpec{{Key: "K"}},
				Edges: []EdgeSpec{BehaviorEdge("K", "K", BehaviorSpec{Name: "x", Factory: func(_ *Dataflow, _ *Edge) (BehaviorFunc, error) {
					return nil, failing
				}})},
			}},
			want: failing,
		},
		{
			name: "invalid dataflow",
			spec: PatternSpec{
				Interface: Spec{Nodes: []NodeSpec{{Key: "K"}}},
				Dataflow:  Spec{Nodes: []NodeSpec{{Key: "n", Value: "not a calc"}}},
			},
			want: ErrInvalidCalc,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.spec, nil)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
