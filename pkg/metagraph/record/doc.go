/*
Package record provides a string-keyed value bag with typed, defaulting accessors.

# Overview

Record is the shape of every free-form map in metagraph: graph-level
metadata, edge values (which always carry "source" and "target"), and the
plain-record inputs of a dataflow instance.

	r := record.Record{"source": "a", "target": "c", "n": 42}

	r.Int("n", 0)          // 42
	r.String("source", "") // "a"
	r.Bool("missing", true) // true

# Loading

Declarative graph and dataflow documents are loaded from YAML, JSON or TOML:

	doc, err := record.FromFile("graph.yaml")

	// Or from bytes
	doc, err = record.FromYAML(yamlBytes)
	doc, err = record.FromJSON(jsonBytes)
	doc, err = record.FromTOML(tomlBytes)

JSON numbers arrive as float64; Int converts them when they carry no
fractional part.
*/
package record
