package metagraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/metagraph/pkg/metagraph/observability"
	"github.com/randalmurphal/metagraph/pkg/metagraph/record"
)

// CalcFunc computes one dataflow node. args holds the values of the node's
// predecessors, one per in-edge in edge declaration order. The flow gives
// access to inputs and to other calcs.
//
// A CalcFunc must return a value; nil (including nil maps, slices and
// pointers) is reported as ErrComputationDefect.
type CalcFunc func(f *Flow, args ...any) (any, error)

// Dataflow is a compiled dependency graph of calc functions. It holds no
// per-instance state; each Instantiate call returns an independent Flow.
type Dataflow struct {
	graph *Graph
	calcs []CalcFunc
	opts  []Option
}

// NewDataflow wraps a graph whose node values are calc functions.
// Returns an error joining one ErrInvalidCalc per offending node.
func NewDataflow(g *Graph, opts ...Option) (*Dataflow, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", ErrInvalidSpec)
	}
	calcs := make([]CalcFunc, len(g.nodes))
	var errs []error
	for i, n := range g.nodes {
		fn, ok := asCalc(n.value)
		if !ok {
			errs = append(errs, &KeyError{Kind: "node", Key: n.key, Err: fmt.Errorf("%w: got %T", ErrInvalidCalc, n.value)})
			continue
		}
		calcs[i] = fn
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Dataflow{graph: g, calcs: calcs, opts: opts}, nil
}

func asCalc(v any) (CalcFunc, bool) {
	switch fn := v.(type) {
	case CalcFunc:
		return fn, fn != nil
	case func(*Flow, ...any) (any, error):
		return fn, fn != nil
	}
	return nil, false
}

// Graph returns the underlying graph.
func (d *Dataflow) Graph() *Graph { return d.graph }

// Instantiate creates an independent evaluation instance bound to inputs.
// inputs maps a namespace to a nested *Flow, a record.Record or a
// map[string]any. WithInputs entries are merged over inputs.
func (d *Dataflow) Instantiate(inputs map[string]any, opts ...Option) *Flow {
	cfg := newConfig(append(append([]Option{}, d.opts...), opts...))

	merged := make(map[string]any, len(inputs)+len(cfg.inputs))
	for ns, v := range inputs {
		merged[ns] = v
	}
	for ns, v := range cfg.inputs {
		merged[ns] = v
	}

	id := uuid.New().String()
	return &Flow{
		id:     id,
		df:     d,
		inputs: merged,
		memo:   make(map[int]any),
		active: make(map[int]bool),
		cfg:    cfg,
		ctx:    cfg.ctx,
		logger: observability.EnrichLogger(cfg.logger, id),
	}
}

// Flow is one evaluation instance of a Dataflow: its inputs plus a memo of
// computed values. Each calc runs at most once per Flow.
//
// Flow is not safe for concurrent use.
type Flow struct {
	id     string
	df     *Dataflow
	inputs map[string]any
	memo   map[int]any
	active map[int]bool
	depth  int
	cfg    config
	ctx    context.Context
	logger *slog.Logger
}

// ID returns the unique identifier of this flow instance.
func (f *Flow) ID() string { return f.id }

// Dataflow returns the dataflow this flow was instantiated from.
func (f *Flow) Dataflow() *Dataflow { return f.df }

// Computed reports whether the calc with the given id has a memoized value.
func (f *Flow) Computed(id any) bool {
	n, err := f.df.graph.Node(id)
	if err != nil {
		return false
	}
	_, ok := f.memo[n.index]
	return ok
}

// Input reads field from the input bound to namespace.
//
// A nested *Flow is asked for Calc(field). A record yields its field, or nil
// when the field is missing. A namespace with no input fails with
// ErrUnresolvedInput.
func (f *Flow) Input(namespace, field string) (any, error) {
	src, ok := f.inputs[namespace]
	if !ok {
		return nil, fmt.Errorf("%w: namespace %q", ErrUnresolvedInput, namespace)
	}
	switch v := src.(type) {
	case *Flow:
		return v.Calc(field)
	case record.Record:
		return v[field], nil
	case map[string]any:
		return v[field], nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: namespace %q holds %T", ErrUnresolvedInput, namespace, src)
}

// frame is one pending calc on the evaluation stack.
type frame struct {
	node *Node
	args []any
	next int
}

// Calc returns the value of the dataflow node id, computing it and any
// missing predecessors first.
//
// Predecessors are evaluated depth-first in in-edge declaration order using
// an explicit stack, so long chains do not grow the goroutine stack. Results
// are memoized by presence; failures are not memoized.
func (f *Flow) Calc(id any) (any, error) {
	n, err := f.df.graph.Node(id)
	if err != nil {
		return nil, &CalcError{ID: id, Err: err}
	}
	if v, ok := f.memo[n.index]; ok {
		f.cacheHit(n)
		return v, nil
	}
	if f.active[n.index] {
		return nil, &CalcError{ID: n.key, Err: ErrCycleDetected}
	}
	return f.evaluate(n)
}

func (f *Flow) evaluate(root *Node) (any, error) {
	if err := f.enter(root); err != nil {
		return nil, err
	}
	stack := []*frame{{node: root, args: make([]any, 0, len(root.ins))}}

	for {
		top := stack[len(stack)-1]

		if top.next < len(top.node.ins) {
			src := f.df.graph.edges[top.node.ins[top.next]].source
			top.next++

			child := f.df.graph.nodes[src]
			if v, ok := f.memo[src]; ok {
				f.cacheHit(child)
				top.args = append(top.args, v)
				continue
			}
			if f.active[src] {
				f.unwind(stack)
				return nil, &CalcError{ID: child.key, Err: ErrCycleDetected}
			}
			if err := f.enter(child); err != nil {
				f.unwind(stack)
				return nil, err
			}
			stack = append(stack, &frame{node: child, args: make([]any, 0, len(child.ins))})
			continue
		}

		value, err := f.run(top.node, top.args)
		f.leave(top.node)
		stack = stack[:len(stack)-1]
		if err != nil {
			f.unwind(stack)
			return nil, err
		}
		f.memo[top.node.index] = value

		if len(stack) == 0 {
			return value, nil
		}
		parent := stack[len(stack)-1]
		parent.args = append(parent.args, value)
	}
}

func (f *Flow) cacheHit(n *Node) {
	calcID := calcLabel(n.key)
	f.cfg.metrics.RecordCacheHit(f.ctx, calcID)
	f.cfg.spans.AddSpanEvent(f.ctx, "metagraph.cache_hit", attribute.String("calc.id", calcID))
}

func (f *Flow) enter(n *Node) error {
	if f.depth >= f.cfg.maxDepth {
		return &CalcError{ID: n.key, Err: fmt.Errorf("%w: depth %d", ErrStackLimitExceeded, f.cfg.maxDepth)}
	}
	f.depth++
	f.active[n.index] = true
	return nil
}

func (f *Flow) leave(n *Node) {
	f.depth--
	delete(f.active, n.index)
}

func (f *Flow) unwind(stack []*frame) {
	for _, fr := range stack {
		f.leave(fr.node)
	}
}

// run invokes one calc function with observability around it.
func (f *Flow) run(n *Node, args []any) (any, error) {
	calcID := calcLabel(n.key)
	observability.LogCalcStart(f.logger, calcID)
	elapsed := observability.TimedOperation()
	start := time.Now()

	parent := f.ctx
	ctx, span := f.cfg.spans.StartCalcSpan(parent, f.id, calcID)
	f.ctx = ctx
	value, err := f.df.calcs[n.index](f, args...)
	f.ctx = parent

	if err == nil && isAbsent(value) {
		err = ErrComputationDefect
	}
	if err != nil {
		if !sameCalc(err, n.key) {
			err = &CalcError{ID: n.key, Err: err}
		}
	}

	f.cfg.spans.EndSpanWithError(span, err)
	f.cfg.metrics.RecordCalc(ctx, calcID, time.Since(start), err)
	if err != nil {
		observability.LogCalcError(f.logger, calcID, err)
		return nil, err
	}
	observability.LogCalcComplete(f.logger, calcID, elapsed())
	return value, nil
}

// sameCalc reports whether err is already a CalcError for key.
func sameCalc(err error, key any) bool {
	ce, ok := err.(*CalcError)
	return ok && ce.ID == key
}

// isAbsent reports whether v is nil or a nil reference value.
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func calcLabel(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	return fmt.Sprint(key)
}
