package metagraph

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/metagraph/pkg/metagraph/expr"
	"github.com/randalmurphal/metagraph/pkg/metagraph/record"
	"github.com/randalmurphal/metagraph/pkg/metagraph/registry"
)

// LoadDataflow reads a declarative dataflow document from a YAML or JSON
// file. See ParseDataflow for the format.
func LoadDataflow(path string, funcs *registry.Registry[string, CalcFunc], opts ...Option) (*Dataflow, error) {
	doc, err := record.FromFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDataflow(doc, funcs, opts...)
}

// ParseDataflow builds a dataflow from a graph document whose node values
// describe the calc:
//
//	{calc: name}      a function registered in funcs
//	{expr: "a + b"}   an expression over predecessor keys and ns.field inputs
//	{const: value}    a constant
//
// Expression identifiers name predecessors by key; an identifier with a
// dot reads an input. funcs may be nil when no node uses calc.
func ParseDataflow(doc record.Record, funcs *registry.Registry[string, CalcFunc], opts ...Option) (*Dataflow, error) {
	spec, err := ParseSpec(doc)
	if err != nil {
		return nil, err
	}
	structure, err := Build(spec)
	if err != nil {
		return nil, err
	}

	evaluator := expr.New()
	resolved := Spec{Meta: spec.Meta, Edges: spec.Edges, Nodes: make([]NodeSpec, len(structure.nodes))}
	for i, n := range structure.nodes {
		fn, err := declaredCalc(n, funcs, evaluator)
		if err != nil {
			return nil, &KeyError{Kind: "node", Key: n.key, Err: err}
		}
		resolved.Nodes[i] = NodeSpec{Key: n.key, Value: fn}
	}

	g, err := Build(resolved)
	if err != nil {
		return nil, err
	}
	return NewDataflow(g, opts...)
}

func declaredCalc(n *Node, funcs *registry.Registry[string, CalcFunc], evaluator *expr.Evaluator) (CalcFunc, error) {
	decl, ok := record.As(n.value)
	if !ok {
		return nil, fmt.Errorf("%w: node value is %T", ErrInvalidCalc, n.value)
	}
	switch {
	case decl.Has("calc"):
		name := decl.String("calc", "")
		if funcs == nil {
			return nil, fmt.Errorf("%w: no functions registered for %q", ErrInvalidCalc, name)
		}
		fn, err := funcs.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCalc, err)
		}
		return fn, nil
	case decl.Has("expr"):
		src := decl.String("expr", "")
		if strings.TrimSpace(src) == "" {
			return nil, fmt.Errorf("%w: empty expression", ErrInvalidCalc)
		}
		params := make([]string, len(n.ins))
		for i, e := range n.Ins() {
			params[i] = calcLabel(e.SourceKey())
		}
		return exprCalc(evaluator, src, params), nil
	case decl.Has("const"):
		value := decl["const"]
		if isAbsent(value) {
			return nil, fmt.Errorf("%w: constant has no value", ErrInvalidCalc)
		}
		return func(_ *Flow, _ ...any) (any, error) { return value, nil }, nil
	}
	return nil, fmt.Errorf("%w: expected calc, expr or const", ErrInvalidCalc)
}

// exprCalc evaluates src with params bound to the calc arguments.
func exprCalc(evaluator *expr.Evaluator, src string, params []string) CalcFunc {
	return func(f *Flow, args ...any) (any, error) {
		var inputErr error
		vars := expr.VarsFunc(func(name string) (any, bool) {
			for i, p := range params {
				if p == name && i < len(args) {
					return args[i], true
				}
			}
			ns, field, ok := strings.Cut(name, ".")
			if !ok {
				return nil, false
			}
			v, err := f.Input(ns, field)
			if err != nil {
				inputErr = err
				return nil, false
			}
			return v, true
		})
		v, err := evaluator.Evaluate(src, vars)
		if inputErr != nil {
			return nil, inputErr
		}
		return v, err
	}
}
