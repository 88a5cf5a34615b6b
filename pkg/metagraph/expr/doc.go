/*
Package expr provides a small expression language for declarative dataflow nodes.

# Overview

A dataflow loaded from YAML or JSON can describe a computation as an
expression instead of naming a Go function. Identifiers resolve through a
Vars implementation: in metagraph they are the keys of the node's
predecessors and "namespace.field" input references.

# Expression Syntax

	<or>      := <and> (('or' | '||') <and>)*
	<and>     := <not> (('and' | '&&') <not>)*
	<not>     := ('not' | '!') <not> | <compare>
	<compare> := <sum> [('==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains' | custom) <sum>]
	<sum>     := <product> (('+' | '-') <product>)*
	<product> := <unary> (('*' | '/' | '%') <unary>)*
	<unary>   := '-' <unary> | <primary>
	<primary> := number | 'string' | "string" | true | false | null | identifier | '(' <or> ')'

# Values

Integer literals and integer arithmetic produce int; division and any
float operand produce float64. + concatenates when either side is a string.
Logical operators return bool using the truthiness rules of IsTruthy.

	vars := expr.Map{"base": 40, "bonus": 2, "data.label": "n"}
	v, _ := expr.Eval("base + bonus", vars)       // 42
	v, _ = expr.Eval("data.label + '=' + 1", vars) // "n=1"
	v, _ = expr.Eval("base > 10 and bonus", vars)  // true

Unknown identifiers fail with ErrUnknownVariable rather than being read as
string literals.

# Custom Operators

	e := expr.New(expr.WithCustomOperator("max", func(l, r any) (any, error) {
	    if expr.ToFloat64(l) > expr.ToFloat64(r) {
	        return l, nil
	    }
	    return r, nil
	}))
	v, _ := e.Evaluate("a max b", vars)
*/
package expr
