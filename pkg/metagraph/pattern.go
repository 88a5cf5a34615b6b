package metagraph

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/randalmurphal/metagraph/pkg/metagraph/observability"
	"github.com/randalmurphal/metagraph/pkg/metagraph/record"
	"github.com/randalmurphal/metagraph/pkg/metagraph/registry"
)

// MemberFactory builds a member that is not tied to an interface edge.
// flow is the dataflow bound to the kind's namespace and may be nil.
type MemberFactory func(flow *Dataflow, kind *Node) (*Behavior, error)

// MemberSpec declares one member of a kind.
type MemberSpec struct {
	Name    string
	Factory MemberFactory
}

// ClassMember computes a kind-level value from the compiled definition.
type ClassMember func(def *Definition) (any, error)

// ClassMemberFactory builds a class member for a kind.
type ClassMemberFactory func(flow *Dataflow, kind *Node) (ClassMember, error)

// ClassMemberSpec declares one class member of a kind.
type ClassMemberSpec struct {
	Name    string
	Factory ClassMemberFactory
}

// KindSpec is the value of an interface node. An interface node may carry
// a KindSpec, a []KindSpec, or nothing.
type KindSpec struct {
	Members      []MemberSpec
	ClassMembers []ClassMemberSpec
}

// BehaviorFactory builds the body of an edge behavior. flow is the dataflow
// bound to the edge's namespace and may be nil.
type BehaviorFactory func(flow *Dataflow, edge *Edge) (BehaviorFunc, error)

// BehaviorSpec is carried under "behavior" in an interface edge value. The
// behavior becomes a member of the edge's source kind.
type BehaviorSpec struct {
	Name string
	// Deps lists dependencies in dependency notation ("ns.field" for inputs,
	// anything else for calc ids) or as DependencyRef values.
	Deps    []any
	Factory BehaviorFactory
}

// BehaviorEdge returns an interface edge keyed "source.name" that adds b to
// the source kind.
func BehaviorEdge(source, target string, b BehaviorSpec) EdgeSpec {
	return NewEdge(source+"."+b.Name, source, target, record.Record{"behavior": b})
}

// CalcFactory builds a calc function that needs the compiled pattern,
// typically to wrap values in kind definitions.
type CalcFactory func(p *Pattern) CalcFunc

// PatternSpec describes a pattern: an interface graph of kinds and
// behaviors plus the dataflow that supplies behavior dependencies.
type PatternSpec struct {
	// Interface is the interface graph, in any form Detect accepts.
	Interface any
	// Dataflow, when set, is shared by every kind. Node values are CalcFunc
	// or CalcFactory.
	Dataflow any
	// Roots maps a kind to the calc id that produces its root object.
	// Kinds without an entry are rooted by wrapping data[kind].
	Roots map[string]any
	// Eager lists calc ids computed as soon as an instance is created.
	Eager []any
}

// Pattern is a compiled pattern: one Definition per kind plus the
// dataflows that back them. It holds no per-instance state.
type Pattern struct {
	iface  *Graph
	graph  *Graph
	defs   *registry.Registry[string, *Definition]
	shared *Dataflow
	flows  map[string]*Dataflow
	empty  *Dataflow
	roots  map[string]any
	eager  []any
	opts   []Option
	logger *slog.Logger
}

// Definition is the compiled description of one kind.
type Definition struct {
	kind         string
	node         *Node
	pattern      *Pattern
	members      *registry.Registry[string, *Behavior]
	classMembers record.Record
}

// Compile compiles spec into a Pattern.
//
// When spec.Dataflow is nil, flows supplies one dataflow per namespace; the
// namespace of a kind or behavior is its key up to the first ".". Each
// dataflow may be given in any form Detect accepts.
//
// Compile fails on malformed specs and factory errors. Dependencies are
// not resolved here; a missing calc or input surfaces when the member is
// called.
func Compile(spec PatternSpec, flows map[string]any, opts ...Option) (*Pattern, error) {
	cfg := newConfig(opts)
	elapsed := observability.TimedOperation()

	iface, err := Detect(spec.Interface)
	if err != nil {
		return nil, fmt.Errorf("interface: %w", err)
	}

	p := &Pattern{
		iface:  iface,
		defs:   registry.New[string, *Definition](),
		flows:  make(map[string]*Dataflow, len(flows)),
		roots:  maps.Clone(spec.Roots),
		eager:  slices.Clone(spec.Eager),
		opts:   opts,
		logger: cfg.logger,
	}

	if spec.Dataflow != nil {
		if p.shared, err = p.compileDataflow(spec.Dataflow); err != nil {
			return nil, fmt.Errorf("dataflow: %w", err)
		}
	}
	for _, ns := range slices.Sorted(maps.Keys(flows)) {
		df, err := p.compileDataflow(flows[ns])
		if err != nil {
			return nil, fmt.Errorf("dataflow %s: %w", ns, err)
		}
		p.flows[ns] = df
	}
	empty, err := Build(Spec{})
	if err != nil {
		return nil, err
	}
	if p.empty, err = NewDataflow(empty, opts...); err != nil {
		return nil, err
	}

	kinds, err := p.compileKinds()
	if err != nil {
		return nil, err
	}
	behaviors, err := p.compileBehaviors()
	if err != nil {
		return nil, err
	}
	if err := p.compileClassMembers(kinds); err != nil {
		return nil, err
	}
	if err := p.buildDefinitionGraph(); err != nil {
		return nil, err
	}

	observability.LogCompile(p.logger, p.defs.Len(), behaviors, elapsed())
	return p, nil
}

// compileDataflow detects v as a graph and resolves calc factories.
func (p *Pattern) compileDataflow(v any) (*Dataflow, error) {
	g, err := Detect(v)
	if err != nil {
		return nil, err
	}
	spec := Spec{Meta: g.Meta(), Nodes: make([]NodeSpec, len(g.nodes))}
	for i, n := range g.nodes {
		value := n.value
		switch fn := value.(type) {
		case CalcFactory:
			value = fn(p)
		case func(*Pattern) CalcFunc:
			value = fn(p)
		}
		spec.Nodes[i] = NodeSpec{Key: n.key, Value: value}
	}
	for _, e := range g.edges {
		spec.Edges = append(spec.Edges, EdgeSpec{Key: e.key, Value: e.value})
	}
	resolved, err := Build(spec)
	if err != nil {
		return nil, err
	}
	return NewDataflow(resolved, p.opts...)
}

// compileKinds creates one definition per interface node with its
// non-edge members. Returns the kind specs by kind for the class member pass.
func (p *Pattern) compileKinds() (map[string][]KindSpec, error) {
	kinds := make(map[string][]KindSpec, len(p.iface.nodes))
	var errs []error
	for _, kn := range p.iface.nodes {
		kind := calcLabel(kn.key)
		specs, err := kindSpecs(kn.value)
		if err != nil {
			errs = append(errs, &KeyError{Kind: "kind", Key: kind, Err: err})
			continue
		}
		def := &Definition{
			kind:         kind,
			node:         kn,
			pattern:      p,
			members:      registry.New[string, *Behavior](),
			classMembers: record.Record{},
		}
		if err := p.defs.Register(kind, def); err != nil {
			errs = append(errs, &KeyError{Kind: "kind", Key: kind, Err: ErrDuplicateKey})
			continue
		}
		kinds[kind] = specs

		flow := p.flowFor(kn.key)
		for _, ks := range specs {
			for _, ms := range ks.Members {
				if err := def.addMember(ms.Name, func() (*Behavior, error) {
					if ms.Factory == nil {
						return nil, fmt.Errorf("%w: member %s has no factory", ErrInvalidSpec, ms.Name)
					}
					return ms.Factory(flow, kn)
				}); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return kinds, nil
}

// compileBehaviors turns interface edges that carry a behavior into
// members of their source kind. Edges without one are structural only.
func (p *Pattern) compileBehaviors() (int, error) {
	count := 0
	var errs []error
	for _, e := range p.iface.edges {
		raw, ok := e.value.Get("behavior")
		if !ok {
			continue
		}
		var bs BehaviorSpec
		switch v := raw.(type) {
		case BehaviorSpec:
			bs = v
		case *BehaviorSpec:
			bs = *v
		default:
			errs = append(errs, &KeyError{Kind: "edge", Key: e.key, Err: fmt.Errorf("%w: behavior is %T", ErrInvalidSpec, raw)})
			continue
		}
		if bs.Name == "" {
			errs = append(errs, &KeyError{Kind: "edge", Key: e.key, Err: fmt.Errorf("%w: behavior has no name", ErrInvalidSpec)})
			continue
		}

		def, _ := p.defs.Get(calcLabel(e.SourceKey()))
		flow := p.flowFor(e.key)
		if flow == nil {
			observability.LogUnboundNamespace(p.logger, bs.Name, namespaceOf(e.key))
		}

		deps := make([]DependencyRef, len(bs.Deps))
		for i, d := range bs.Deps {
			deps[i] = toDependency(d)
		}
		if err := def.addMember(bs.Name, func() (*Behavior, error) {
			var body BehaviorFunc
			if bs.Factory != nil {
				var err error
				if body, err = bs.Factory(flow, e); err != nil {
					return nil, err
				}
			}
			return &Behavior{Name: bs.Name, Dependencies: deps, Body: body}, nil
		}); err != nil {
			errs = append(errs, err)
			continue
		}
		count++
	}
	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	return count, nil
}

// compileClassMembers runs after all members exist so class members can
// describe the finished definition.
func (p *Pattern) compileClassMembers(kinds map[string][]KindSpec) error {
	var errs []error
	p.defs.Range(func(kind string, def *Definition) bool {
		flow := p.flowFor(def.node.key)
		for _, ks := range kinds[kind] {
			for _, cs := range ks.ClassMembers {
				value, err := classMemberValue(cs, flow, def)
				if err != nil {
					errs = append(errs, &BehaviorError{Kind: kind, Member: cs.Name, Err: err})
					continue
				}
				def.classMembers[cs.Name] = value
			}
		}
		return true
	})
	return errors.Join(errs...)
}

func classMemberValue(cs ClassMemberSpec, flow *Dataflow, def *Definition) (any, error) {
	if cs.Factory == nil {
		return nil, fmt.Errorf("%w: class member has no factory", ErrInvalidSpec)
	}
	fn, err := cs.Factory(flow, def.node)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: factory returned nil", ErrInvalidSpec)
	}
	return fn(def)
}

// buildDefinitionGraph mirrors the interface graph with class members as
// node values.
func (p *Pattern) buildDefinitionGraph() error {
	spec := Spec{Meta: p.iface.Meta()}
	for _, kn := range p.iface.nodes {
		def, _ := p.defs.Get(calcLabel(kn.key))
		spec.Nodes = append(spec.Nodes, NodeSpec{Key: kn.key, Value: def.classMembers.Clone()})
	}
	for _, e := range p.iface.edges {
		extra := record.Record{}
		if bs, ok := e.value["behavior"].(BehaviorSpec); ok {
			extra["member"] = bs.Name
		}
		spec.Edges = append(spec.Edges, NewEdge(e.key, e.SourceKey(), e.TargetKey(), extra))
	}
	g, err := Build(spec)
	if err != nil {
		return err
	}
	p.graph = g
	return nil
}

func kindSpecs(v any) ([]KindSpec, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case KindSpec:
		return []KindSpec{s}, nil
	case *KindSpec:
		if s == nil {
			return nil, nil
		}
		return []KindSpec{*s}, nil
	case []KindSpec:
		return s, nil
	}
	return nil, fmt.Errorf("%w: kind value is %T", ErrInvalidSpec, v)
}

// flowFor returns the dataflow serving key, or nil when none is bound.
func (p *Pattern) flowFor(key any) *Dataflow {
	if p.shared != nil {
		return p.shared
	}
	return p.flows[namespaceOf(key)]
}

// namespaceOf returns the part of key before the first ".".
func namespaceOf(key any) string {
	ns, _, _ := strings.Cut(calcLabel(key), ".")
	return ns
}

// Graph returns the definition graph. Its nodes are keyed like the
// interface kinds and carry the class members as a record.Record.
func (p *Pattern) Graph() *Graph { return p.graph }

// Interface returns the interface graph the pattern was compiled from.
func (p *Pattern) Interface() *Graph { return p.iface }

// Kinds returns the kind names in declaration order.
func (p *Pattern) Kinds() []string { return p.defs.Keys() }

// Definition returns the compiled definition of kind.
func (p *Pattern) Definition(kind string) (*Definition, error) {
	def, ok := p.defs.Get(kind)
	if !ok {
		return nil, &KeyError{Kind: "kind", Key: kind, Err: ErrKeyNotFound}
	}
	return def, nil
}

// Dataflow returns the dataflow serving namespace, or nil.
func (p *Pattern) Dataflow(namespace string) *Dataflow {
	if p.shared != nil {
		return p.shared
	}
	return p.flows[namespace]
}

func (d *Definition) addMember(name string, build func() (*Behavior, error)) error {
	if name == "" {
		return &KeyError{Kind: "kind", Key: d.kind, Err: fmt.Errorf("%w: member has no name", ErrInvalidSpec)}
	}
	if d.members.Has(name) {
		return &KeyError{Kind: "member", Key: d.kind + "." + name, Err: ErrDuplicateKey}
	}
	b, err := build()
	if err != nil {
		return &BehaviorError{Kind: d.kind, Member: name, Err: err}
	}
	if b == nil {
		return &BehaviorError{Kind: d.kind, Member: name, Err: fmt.Errorf("%w: factory returned nil", ErrInvalidSpec)}
	}
	compiled := *b
	compiled.Name = name
	return d.members.Register(name, &compiled)
}

// Kind returns the kind name.
func (d *Definition) Kind() string { return d.kind }

// Pattern returns the pattern the definition belongs to.
func (d *Definition) Pattern() *Pattern { return d.pattern }

// Members returns the member names in declaration order: kind members
// first, then edge behaviors.
func (d *Definition) Members() []string { return d.members.Keys() }

// Member returns the compiled behavior for name.
func (d *Definition) Member(name string) (*Behavior, error) {
	b, ok := d.members.Get(name)
	if !ok {
		return nil, &KeyError{Kind: "member", Key: d.kind + "." + name, Err: ErrUnknownMember}
	}
	return b, nil
}

// ClassMembers returns a copy of the kind-level values.
func (d *Definition) ClassMembers() record.Record { return d.classMembers.Clone() }

// ClassMember returns one kind-level value.
func (d *Definition) ClassMember(name string) (any, bool) {
	return d.classMembers.Get(name)
}

// Wrap binds value to this kind and to f. The members of the returned
// object resolve their dependencies against f when called.
func (d *Definition) Wrap(f *Flow, value any) *Object {
	return &Object{def: d, flow: f, value: value}
}
