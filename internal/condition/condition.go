// Package condition evaluates step `when` expressions against a variable
// context.
//
// The grammar is deliberately restricted: variable lookups, literals,
// comparison operators, boolean combinators, and parentheses. There is no
// function call syntax, no assignment, and no access to anything outside
// the provided variable map, which keeps recipe conditions inert by
// construction.
//
//	expr   := or
//	or     := and ( "||" and )*
//	and    := unary ( "&&" unary )*
//	unary  := "!" unary | cmp
//	cmp    := term ( ( "==" | "!=" | "<" | "<=" | ">" | ">=" ) term )?
//	term   := "(" expr ")" | literal | variable
//
// Variables resolve against the context map; dotted names ("db.driver")
// traverse nested maps. Unknown variables evaluate as nil, which is falsy
// and compares equal only to nil.
package condition

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

// Evaluator is a stateless condition evaluator. It implements
// domain.ConditionEvaluator.
type Evaluator struct{}

// New creates a condition evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Evaluate parses and evaluates expr against vars.
// An empty or blank expression evaluates true (no condition declared).
func (e *Evaluator) Evaluate(expr string, vars map[string]any) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}

	tokens, err := lex(expr)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %s", forgeerrors.ErrConditionSyntax, expr, err)
	}

	p := &parser{tokens: tokens}
	node, err := p.parseExpr()
	if err != nil {
		return false, fmt.Errorf("%w: %s: %s", forgeerrors.ErrConditionSyntax, expr, err)
	}
	if !p.atEnd() {
		return false, fmt.Errorf("%w: %s: unexpected %q", forgeerrors.ErrConditionSyntax, expr, p.peek().text)
	}

	val, err := node.eval(vars)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %s", forgeerrors.ErrConditionEval, expr, err)
	}
	return truthy(val), nil
}

// tokenKind enumerates lexer token types.
type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp     // == != < <= > >=
	tokAnd    // &&
	tokOr     // ||
	tokNot    // !
	tokLParen // (
	tokRParen // )
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++

		case c == '&':
			if i+1 >= len(input) || input[i+1] != '&' {
				return nil, fmt.Errorf("expected && at offset %d", i)
			}
			tokens = append(tokens, token{tokAnd, "&&"})
			i += 2
		case c == '|':
			if i+1 >= len(input) || input[i+1] != '|' {
				return nil, fmt.Errorf("expected || at offset %d", i)
			}
			tokens = append(tokens, token{tokOr, "||"})
			i += 2

		case c == '=':
			if i+1 >= len(input) || input[i+1] != '=' {
				return nil, fmt.Errorf("expected == at offset %d", i)
			}
			tokens = append(tokens, token{tokOp, "=="})
			i += 2
		case c == '!':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{tokOp, "!="})
				i += 2
			} else {
				tokens = append(tokens, token{tokNot, "!"})
				i++
			}
		case c == '<':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{tokOp, "<="})
				i += 2
			} else {
				tokens = append(tokens, token{tokOp, "<"})
				i++
			}
		case c == '>':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{tokOp, ">="})
				i += 2
			} else {
				tokens = append(tokens, token{tokOp, ">"})
				i++
			}

		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(input) && input[j] != quote {
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			tokens = append(tokens, token{tokString, input[i+1 : j]})
			i = j + 1

		case c >= '0' && c <= '9' || c == '-' && i+1 < len(input) && input[i+1] >= '0' && input[i+1] <= '9':
			j := i + 1
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, input[i:j]})
			i = j

		case isIdentStart(c):
			j := i + 1
			for j < len(input) && isIdentPart(input[j]) {
				j++
			}
			tokens = append(tokens, token{tokIdent, input[i:j]})
			i = j

		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return tokens, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '.' || c >= '0' && c <= '9'
}

// node is an evaluated expression tree node.
type node interface {
	eval(vars map[string]any) (any, error)
}

type literalNode struct{ value any }

func (n literalNode) eval(map[string]any) (any, error) { return n.value, nil }

type variableNode struct{ name string }

func (n variableNode) eval(vars map[string]any) (any, error) {
	return lookup(vars, n.name), nil
}

type notNode struct{ inner node }

func (n notNode) eval(vars map[string]any) (any, error) {
	v, err := n.inner.eval(vars)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

type boolNode struct {
	op          string // "&&" or "||"
	left, right node
}

func (n boolNode) eval(vars map[string]any) (any, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	// Short-circuit.
	if n.op == "&&" && !truthy(l) {
		return false, nil
	}
	if n.op == "||" && truthy(l) {
		return true, nil
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}
	return truthy(r), nil
}

type cmpNode struct {
	op          string
	left, right node
}

func (n cmpNode) eval(vars map[string]any) (any, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}
	return compare(n.op, l, r)
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.atEnd() {
		return token{}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) parseExpr() (node, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for !p.atEnd() && p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = boolNode{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for !p.atEnd() && p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = boolNode{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if !p.atEnd() && p.peek().kind == tokNot {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() && p.peek().kind == tokOp {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return cmpNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	if p.atEnd() {
		return nil, fmt.Errorf("unexpected end of expression")
	}

	switch t := p.next(); t.kind {
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.atEnd() || p.peek().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.next()
		return inner, nil

	case tokString:
		return literalNode{value: t.text}, nil

	case tokNumber:
		f, err := cast.ToFloat64E(t.text)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.text)
		}
		return literalNode{value: f}, nil

	case tokIdent:
		switch t.text {
		case "true":
			return literalNode{value: true}, nil
		case "false":
			return literalNode{value: false}, nil
		case "null", "nil":
			return literalNode{value: nil}, nil
		}
		return variableNode{name: t.text}, nil

	case tokNot, tokAnd, tokOr, tokOp, tokRParen:
		return nil, fmt.Errorf("unexpected %q", t.text)
	}
	return nil, fmt.Errorf("unexpected token")
}

// lookup resolves a possibly-dotted variable name against nested maps.
// Missing names resolve to nil.
func lookup(vars map[string]any, name string) any {
	parts := strings.Split(name, ".")
	var current any = vars
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok {
			return nil
		}
	}
	return current
}

// compare applies a comparison operator with loose coercion: if both sides
// coerce to numbers the comparison is numeric, otherwise string-based.
func compare(op string, l, r any) (bool, error) {
	if op == "==" || op == "!=" {
		eq := looseEqual(l, r)
		if op == "!=" {
			return !eq, nil
		}
		return eq, nil
	}

	lf, lerr := cast.ToFloat64E(l)
	rf, rerr := cast.ToFloat64E(r)
	if lerr == nil && rerr == nil {
		return orderResult(op, numCompare(lf, rf)), nil
	}

	ls, lerr := cast.ToStringE(l)
	rs, rerr := cast.ToStringE(r)
	if lerr != nil || rerr != nil {
		return false, fmt.Errorf("cannot order %T and %T", l, r)
	}
	return orderResult(op, strings.Compare(ls, rs)), nil
}

func numCompare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func orderResult(op string, cmp int) bool {
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// looseEqual compares two values, coercing numerics so 1 == "1" holds the
// way recipe authors expect from YAML-sourced values.
func looseEqual(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}

	if lb, ok := l.(bool); ok {
		if rb, err := cast.ToBoolE(r); err == nil {
			return lb == rb
		}
		return false
	}
	if rb, ok := r.(bool); ok {
		if lb, err := cast.ToBoolE(l); err == nil {
			return lb == rb
		}
		return false
	}

	lf, lerr := cast.ToFloat64E(l)
	rf, rerr := cast.ToFloat64E(r)
	if lerr == nil && rerr == nil {
		return lf == rf
	}

	ls, lerr := cast.ToStringE(l)
	rs, rerr := cast.ToStringE(r)
	if lerr != nil || rerr != nil {
		return false
	}
	return ls == rs
}

// truthy converts a value to a boolean: booleans pass through, numbers are
// true when nonzero, strings when non-empty (except "false"), nil is false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		if b, err := cast.ToBoolE(val); err == nil {
			return b
		}
		return val != ""
	default:
		if f, err := cast.ToFloat64E(v); err == nil {
			return f != 0
		}
		return true
	}
}
