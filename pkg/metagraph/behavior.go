package metagraph

import (
	"fmt"
	"strings"
)

// DependencyRef names one value a behavior needs: either a calc in the
// flow (ID set) or an input field (Namespace and Field set).
type DependencyRef struct {
	ID        any
	Namespace string
	Field     string
}

// CalcRef refers to the calc with the given id.
func CalcRef(id any) DependencyRef {
	return DependencyRef{ID: id}
}

// InputRef refers to field of the input bound to namespace.
func InputRef(namespace, field string) DependencyRef {
	return DependencyRef{Namespace: namespace, Field: field}
}

// ParseDependency parses dependency notation: "ns.field" is an input
// reference, anything without a dot is a calc id.
func ParseDependency(s string) DependencyRef {
	if ns, field, ok := strings.Cut(s, "."); ok {
		return InputRef(ns, field)
	}
	return CalcRef(s)
}

// toDependency accepts a DependencyRef, a string in dependency notation, or
// any other comparable value as a calc id.
func toDependency(v any) DependencyRef {
	switch d := v.(type) {
	case DependencyRef:
		return d
	case string:
		return ParseDependency(d)
	}
	return CalcRef(v)
}

// IsInput reports whether d refers to an input field.
func (d DependencyRef) IsInput() bool {
	return d.Namespace != ""
}

// Resolve reads the referenced value from f.
func (d DependencyRef) Resolve(f *Flow) (any, error) {
	if d.IsInput() {
		return f.Input(d.Namespace, d.Field)
	}
	return f.Calc(d.ID)
}

// String returns d in dependency notation.
func (d DependencyRef) String() string {
	if d.IsInput() {
		return d.Namespace + "." + d.Field
	}
	return fmt.Sprint(d.ID)
}

// Binding is what a behavior runs against: the wrapped value plus the flow
// instance that supplies its dependencies.
type Binding struct {
	Pattern *Pattern
	Flow    *Flow
	Value   any
}

// BehaviorFunc is the body of a compiled member. deps holds the resolved
// dependency values in declaration order; args are the caller's arguments.
type BehaviorFunc func(b Binding, deps []any, args ...any) (any, error)

// Behavior is the compiled form of one member: a name, the values it
// depends on, and a body. It is plain data and can be inspected.
type Behavior struct {
	Name         string
	Dependencies []DependencyRef
	Body         BehaviorFunc
}

// Invoke resolves the dependencies against b.Flow and runs the body.
func (bh *Behavior) Invoke(b Binding, args ...any) (any, error) {
	deps := make([]any, len(bh.Dependencies))
	for i, dep := range bh.Dependencies {
		if b.Flow == nil {
			return nil, fmt.Errorf("%w: no flow bound for %s", ErrUnresolvedInput, dep)
		}
		v, err := dep.Resolve(b.Flow)
		if err != nil {
			return nil, err
		}
		deps[i] = v
	}
	if bh.Body == nil {
		return b.Value, nil
	}
	return bh.Body(b, deps, args...)
}
