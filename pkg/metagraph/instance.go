package metagraph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/metagraph/pkg/metagraph/observability"
	"github.com/randalmurphal/metagraph/pkg/metagraph/record"
)

// Instance is a pattern bound to concrete data: a fresh set of flows plus
// the root objects handed out so far.
//
// Instance is not safe for concurrent use.
type Instance struct {
	id      string
	pattern *Pattern
	data    record.Record
	shared  *Flow
	flows   map[string]*Flow
	empty   *Flow
	roots   map[string]*Object
}

// Instantiate binds data to the pattern. Every flow receives data under the
// "data" namespace, and namespaced flows can read each other by namespace.
// Eager calcs are computed before returning; the first failure is returned.
func (p *Pattern) Instantiate(data map[string]any, opts ...Option) (*Instance, error) {
	cfg := newConfig(append(append([]Option{}, p.opts...), opts...))
	start := time.Now()

	inst := &Instance{
		id:      uuid.New().String(),
		pattern: p,
		data:    record.Record(data),
		flows:   make(map[string]*Flow, len(p.flows)),
		roots:   make(map[string]*Object),
	}

	ctx, span := cfg.spans.StartInstantiateSpan(cfg.ctx, inst.id)
	flowOpts := append(append([]Option{}, opts...), WithContext(ctx))
	inputs := map[string]any{"data": inst.data}

	if p.shared != nil {
		inst.shared = p.shared.Instantiate(inputs, flowOpts...)
	}
	for ns, df := range p.flows {
		inst.flows[ns] = df.Instantiate(inputs, flowOpts...)
	}
	inst.empty = p.empty.Instantiate(inputs, flowOpts...)
	for _, f := range append(inst.namespaceFlows(), inst.empty) {
		for ns, other := range inst.flows {
			if _, taken := f.inputs[ns]; !taken && other != f {
				f.inputs[ns] = other
			}
		}
	}

	err := inst.computeEager()
	cfg.spans.EndSpanWithError(span, err)
	cfg.metrics.RecordInstantiation(ctx, err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	observability.LogInstantiate(cfg.logger, inst.id, len(data))
	return inst, nil
}

func (i *Instance) namespaceFlows() []*Flow {
	out := make([]*Flow, 0, len(i.flows))
	for _, f := range i.flows {
		out = append(out, f)
	}
	return out
}

func (i *Instance) computeEager() error {
	for _, id := range i.pattern.eager {
		if _, err := i.Calc(id); err != nil {
			return fmt.Errorf("eager %v: %w", id, err)
		}
	}
	return nil
}

// ID returns the unique identifier of this instance.
func (i *Instance) ID() string { return i.id }

// Pattern returns the pattern this instance was created from.
func (i *Instance) Pattern() *Pattern { return i.pattern }

// Flow returns the flow of the shared dataflow, or nil when the pattern
// uses per-namespace dataflows.
func (i *Instance) Flow() *Flow { return i.shared }

// NamespaceFlow returns the flow serving namespace. Namespaces without a
// dataflow get a flow with no calcs that still reads inputs.
func (i *Instance) NamespaceFlow(namespace string) *Flow {
	if i.shared != nil {
		return i.shared
	}
	if f, ok := i.flows[namespace]; ok {
		return f
	}
	return i.empty
}

// Calc evaluates a calc. With a shared dataflow id is a calc id; otherwise
// it is written "namespace.calc".
func (i *Instance) Calc(id any) (any, error) {
	if i.shared != nil {
		return i.shared.Calc(id)
	}
	ref := toDependency(id)
	if !ref.IsInput() {
		return nil, fmt.Errorf("%w: calc %v has no namespace", ErrUnresolvedInput, id)
	}
	f, ok := i.flows[ref.Namespace]
	if !ok {
		return nil, fmt.Errorf("%w: namespace %q", ErrUnresolvedInput, ref.Namespace)
	}
	return f.Calc(ref.Field)
}

// Wrap binds value to kind within this instance.
func (i *Instance) Wrap(kind string, value any) (*Object, error) {
	def, err := i.pattern.Definition(kind)
	if err != nil {
		return nil, err
	}
	return def.Wrap(i.NamespaceFlow(namespaceOf(kind)), value), nil
}

// Root returns the root object of kind. The same object is returned on
// every call for the life of the instance.
func (i *Instance) Root(kind string) (*Object, error) {
	if obj, ok := i.roots[kind]; ok {
		return obj, nil
	}

	var obj *Object
	if id, ok := i.pattern.roots[kind]; ok {
		v, err := i.Calc(id)
		if err != nil {
			return nil, err
		}
		if obj, ok = v.(*Object); !ok {
			return nil, fmt.Errorf("%w: root calc %v for %s returned %T", ErrInvalidSpec, id, kind, v)
		}
	} else {
		var err error
		if obj, err = i.Wrap(kind, i.data[kind]); err != nil {
			return nil, err
		}
	}

	i.roots[kind] = obj
	return obj, nil
}

// Object is a value wrapped by a kind definition. Its members are the
// kind's compiled behaviors, bound to the value and a flow.
type Object struct {
	def   *Definition
	flow  *Flow
	value any
}

// Kind returns the kind name.
func (o *Object) Kind() string { return o.def.kind }

// Definition returns the kind definition.
func (o *Object) Definition() *Definition { return o.def }

// Value returns the wrapped raw value.
func (o *Object) Value() any { return o.value }

// Flow returns the flow the members resolve against.
func (o *Object) Flow() *Flow { return o.flow }

// Members returns the member names.
func (o *Object) Members() []string { return o.def.Members() }

// Has reports whether the kind defines member name.
func (o *Object) Has(name string) bool { return o.def.members.Has(name) }

// Call invokes member name. Dependencies are resolved now, so a missing
// calc or input is reported here rather than at compile time.
func (o *Object) Call(name string, args ...any) (any, error) {
	b, err := o.def.Member(name)
	if err != nil {
		return nil, err
	}
	v, err := b.Invoke(Binding{Pattern: o.def.pattern, Flow: o.flow, Value: o.value}, args...)
	if err != nil {
		return nil, &BehaviorError{Kind: o.def.kind, Member: name, Err: err}
	}
	return v, nil
}

// String returns the kind and value.
func (o *Object) String() string {
	return fmt.Sprintf("%s(%v)", o.def.kind, o.value)
}
