package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrSyntax indicates the expression could not be parsed.
	ErrSyntax = errors.New("expr: syntax error")

	// ErrUnknownVariable indicates an identifier that the variables do not define.
	ErrUnknownVariable = errors.New("expr: unknown variable")

	// ErrType indicates an operator was applied to unsupported operand types.
	ErrType = errors.New("expr: type mismatch")

	// ErrDivisionByZero indicates a division or modulo by zero.
	ErrDivisionByZero = errors.New("expr: division by zero")
)

// Vars resolves identifiers during evaluation.
type Vars interface {
	Lookup(name string) (any, bool)
}

// Map adapts a plain map to Vars.
type Map map[string]any

// Lookup implements Vars.
func (m Map) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// VarsFunc adapts a function to Vars.
type VarsFunc func(name string) (any, bool)

// Lookup implements Vars.
func (f VarsFunc) Lookup(name string) (any, bool) { return f(name) }

// BinaryOp implements a custom word operator such as "matches".
type BinaryOp func(left, right any) (any, error)

// Evaluator evaluates expressions with optional custom operators.
// An Evaluator is safe for concurrent use after construction.
type Evaluator struct {
	customOps map[string]BinaryOp
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a word operator at comparison precedence.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate parses and evaluates src against vars.
func (e *Evaluator) Evaluate(src string, vars Vars) (any, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	if vars == nil {
		vars = Map(nil)
	}
	p := &parser{tokens: tokens, vars: vars, ops: e.customOps}
	if p.peek().kind == tokEOF {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	v, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, tok.text, tok.pos)
	}
	return v, nil
}

// Eval evaluates src against a plain map using the default evaluator.
func Eval(src string, vars map[string]any) (any, error) {
	return New().Evaluate(src, Map(vars))
}

type parser struct {
	tokens []token
	pos    int
	vars   Vars
	ops    map[string]BinaryOp
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// word reports whether the next token is the identifier or operator w.
func (p *parser) word(words ...string) (string, bool) {
	tok := p.peek()
	if tok.kind != tokIdent && tok.kind != tokOp {
		return "", false
	}
	for _, w := range words {
		if tok.text == w {
			return w, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.word("or", "||"); !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = IsTruthy(left) || IsTruthy(right)
	}
}

func (p *parser) parseAnd() (any, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.word("and", "&&"); !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = IsTruthy(left) && IsTruthy(right)
	}
}

func (p *parser) parseNot() (any, error) {
	if _, ok := p.word("not", "!"); ok {
		p.next()
		v, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return !IsTruthy(v), nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (any, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.kind == tokOp {
		switch tok.text {
		case "==", "!=", "<", ">", "<=", ">=":
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return compare(tok.text, left, right), nil
		}
	}
	if tok.kind == tokIdent {
		if tok.text == "contains" {
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return strings.Contains(fmt.Sprint(left), fmt.Sprint(right)), nil
		}
		if fn, ok := p.ops[tok.text]; ok {
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return fn(left, right)
		}
	}
	return left, nil
}

func (p *parser) parseAdditive() (any, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.word("+", "-")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		if left, err = arithmetic(op, left, right); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseMultiplicative() (any, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.word("*", "/", "%")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if left, err = arithmetic(op, left, right); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseUnary() (any, error) {
	if _, ok := p.word("-"); ok {
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return arithmetic("-", 0, v)
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (any, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		if i, err := strconv.Atoi(tok.text); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q at %d", ErrSyntax, tok.text, tok.pos)
		}
		return f, nil
	case tokString:
		return tok.text, nil
	case tokLParen:
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ')' at %d", ErrSyntax, closing.pos)
		}
		return v, nil
	case tokIdent:
		switch strings.ToLower(tok.text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null", "nil":
			return nil, nil
		}
		v, ok := p.vars.Lookup(tok.text)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, tok.text)
		}
		return v, nil
	case tokEOF:
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	}
	return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, tok.text, tok.pos)
}
