package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// twoCharOps are checked before single-character operators.
var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||"}

const singleCharOps = "+-*/%<>!"

func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexRune(src[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, i)
			}
			tokens = append(tokens, token{tokString, src[i+1 : i+1+end], i})
			i += end + 2
		case unicode.IsDigit(c):
			start := i
			for i < len(src) && (unicode.IsDigit(rune(src[i])) || src[i] == '.') {
				i++
			}
			tokens = append(tokens, token{tokNumber, src[start:i], start})
		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < len(src) && isIdentRune(rune(src[i])) {
				i++
			}
			tokens = append(tokens, token{tokIdent, src[start:i], start})
		default:
			op := ""
			for _, candidate := range twoCharOps {
				if strings.HasPrefix(src[i:], candidate) {
					op = candidate
					break
				}
			}
			if op == "" && strings.ContainsRune(singleCharOps, c) {
				op = string(c)
			}
			if op == "" {
				return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, c, i)
			}
			tokens = append(tokens, token{tokOp, op, i})
			i += len(op)
		}
	}
	return append(tokens, token{tokEOF, "", len(src)}), nil
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
