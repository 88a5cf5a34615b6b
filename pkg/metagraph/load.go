package metagraph

import (
	"fmt"

	"github.com/randalmurphal/metagraph/pkg/metagraph/record"
)

// Detect normalizes the accepted forms of a graph specification into a
// Graph: a *Graph is returned as is, a Spec is built, and a record document
// is parsed with ParseSpec first.
func Detect(v any) (*Graph, error) {
	switch s := v.(type) {
	case *Graph:
		if s == nil {
			return nil, fmt.Errorf("%w: nil graph", ErrInvalidSpec)
		}
		return s, nil
	case Spec:
		return Build(s)
	case *Spec:
		if s == nil {
			return nil, fmt.Errorf("%w: nil spec", ErrInvalidSpec)
		}
		return Build(*s)
	}
	if doc, ok := record.As(v); ok {
		spec, err := ParseSpec(doc)
		if err != nil {
			return nil, err
		}
		return Build(spec)
	}
	return nil, fmt.Errorf("%w: cannot detect graph from %T", ErrInvalidSpec, v)
}

// ParseSpec reads a graph document:
//
//	meta:  {...}
//	nodes: [{key: a, value: ...}, ...]
//	edges: [{key: e, value: {source: a, target: b, ...}}, ...]
//
// Edge records may also put source and target next to the key.
func ParseSpec(doc record.Record) (Spec, error) {
	return specFromParts(doc.Any("meta", nil), doc.Any("nodes", nil), doc.Any("edges", nil))
}

// LoadSpec reads a graph document from a YAML or JSON file.
func LoadSpec(path string) (Spec, error) {
	doc, err := record.FromFile(path)
	if err != nil {
		return Spec{}, err
	}
	return ParseSpec(doc)
}

// GraphData returns s in the shape the graph pattern instantiates from.
func GraphData(s Spec) map[string]any {
	return map[string]any{
		KindGraph: s.Meta.Clone(),
		KindNode:  s.Nodes,
		KindEdge:  s.Edges,
	}
}

func specFromParts(meta, nodes, edges any) (Spec, error) {
	var spec Spec
	if meta != nil {
		m, ok := record.As(meta)
		if !ok {
			return Spec{}, fmt.Errorf("%w: meta is %T", ErrInvalidSpec, meta)
		}
		spec.Meta = m
	}
	var err error
	if spec.Nodes, err = parseNodes(nodes); err != nil {
		return Spec{}, err
	}
	if spec.Edges, err = parseEdges(edges); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

func parseNodes(v any) ([]NodeSpec, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []NodeSpec:
		return list, nil
	}
	items, err := recordList(v, "nodes")
	if err != nil {
		return nil, err
	}
	out := make([]NodeSpec, len(items))
	for i, item := range items {
		out[i] = NodeSpec{Key: item["key"], Value: item["value"]}
	}
	return out, nil
}

func parseEdges(v any) ([]EdgeSpec, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []EdgeSpec:
		return list, nil
	}
	items, err := recordList(v, "edges")
	if err != nil {
		return nil, err
	}
	out := make([]EdgeSpec, len(items))
	for i, item := range items {
		value := record.Record{}
		if raw, ok := item.Get("value"); ok && raw != nil {
			rec, ok := record.As(raw)
			if !ok {
				return nil, fmt.Errorf("%w: edges[%d] value is %T", ErrInvalidSpec, i, raw)
			}
			value = rec.Clone()
		}
		for _, field := range []string{"source", "target"} {
			if endpoint, ok := item.Get(field); ok && !value.Has(field) {
				value[field] = endpoint
			}
		}
		out[i] = EdgeSpec{Key: item["key"], Value: value}
	}
	return out, nil
}

// recordList accepts []any of records, []record.Record or []map[string]any.
func recordList(v any, what string) ([]record.Record, error) {
	var raw []any
	switch list := v.(type) {
	case []any:
		raw = list
	case []record.Record:
		return list, nil
	case []map[string]any:
		out := make([]record.Record, len(list))
		for i, m := range list {
			out[i] = m
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrInvalidSpec, what, v)
	}
	out := make([]record.Record, len(raw))
	for i, item := range raw {
		rec, ok := record.As(item)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is %T", ErrInvalidSpec, what, i, item)
		}
		out[i] = rec
	}
	return out, nil
}
