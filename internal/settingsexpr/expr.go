// Package settingsexpr implements the small expression language used by
// override files to build on settings that are already bound, e.g.
// `ALLOWED + [3]` or `DATABASES["default"] + {"HOST": "db"}`.
//
// It has literals, identifiers, list/map constructors, indexing, and the
// binary operators + and -. There are no calls and no assignment, so
// evaluating an expression cannot have side effects.
package settingsexpr

import (
	"fmt"
	"sort"
	"strconv"
)

// Scope resolves identifiers during evaluation.
type Scope interface {
	Lookup(name string) (any, bool)
}

// ScopeFunc adapts a function to Scope.
type ScopeFunc func(name string) (any, bool)

func (f ScopeFunc) Lookup(name string) (any, bool) { return f(name) }

// Error reports a parse or evaluation failure at a 1-based column.
type Error struct {
	Column int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("column %d: %s", e.Column, e.Msg)
}

func errorf(pos int, format string, args ...any) *Error {
	return &Error{Column: pos + 1, Msg: fmt.Sprintf(format, args...)}
}

// Expr is a parsed expression.
type Expr struct {
	src  string
	root node
}

// Parse checks the syntax of src. Identifiers are not resolved.
func Parse(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, errorf(0, "empty expression")
	}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, errorf(tok.pos, "unexpected %s", describe(tok))
	}
	return &Expr{src: src, root: root}, nil
}

// Eval parses and evaluates src in one step.
func Eval(src string, scope Scope) (any, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return e.Eval(scope)
}

func (e *Expr) String() string { return e.src }

// Eval evaluates the expression. Values taken from scope are copied, so the
// result never aliases them.
func (e *Expr) Eval(scope Scope) (any, error) {
	if scope == nil {
		scope = ScopeFunc(func(string) (any, bool) { return nil, false })
	}
	return e.root.eval(scope)
}

// Refs returns the sorted, distinct identifiers the expression reads.
func (e *Expr) Refs() []string {
	seen := map[string]struct{}{}
	e.root.refs(func(name string) { seen[name] = struct{}{} })
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	tok := p.toks[p.i]
	if tok.kind != tokEOF {
		p.i++
	}
	return tok
}

func (p *parser) isPunct(s string) bool {
	tok := p.peek()
	return tok.kind == tokPunct && tok.text == s
}

func (p *parser) expect(s string) error {
	tok := p.next()
	if tok.kind != tokPunct || tok.text != s {
		return errorf(tok.pos, "expected %q, found %s", s, describe(tok))
	}
	return nil
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("+") || p.isPunct("-") {
		op := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op.text[0], left: left, right: right, pos: op.pos}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.isPunct("-") {
		op := p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{x: x, pos: op.pos}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("[") {
		open := p.next()
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		x = &indexNode{x: x, key: key, pos: open.pos}
	}
	return x, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokInt:
		n, err := strconv.ParseInt(tok.text, 10, 0)
		if err != nil {
			return nil, errorf(tok.pos, "integer %s out of range", tok.text)
		}
		return &literalNode{v: int(n)}, nil
	case tokFloat:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, errorf(tok.pos, "malformed number %q", tok.text)
		}
		return &literalNode{v: f}, nil
	case tokString:
		return &literalNode{v: tok.text}, nil
	case tokIdent:
		switch tok.text {
		case "true":
			return &literalNode{v: true}, nil
		case "false":
			return &literalNode{v: false}, nil
		case "null":
			return &literalNode{v: nil}, nil
		}
		return &identNode{name: tok.text, pos: tok.pos}, nil
	case tokPunct:
		switch tok.text {
		case "[":
			return p.parseList()
		case "{":
			return p.parseMap(tok.pos)
		case "(":
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		}
	}
	return nil, errorf(tok.pos, "unexpected %s", describe(tok))
}

func (p *parser) parseList() (node, error) {
	list := &listNode{}
	for !p.isPunct("]") {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list.items = append(list.items, item)
		if !p.isPunct(",") {
			break
		}
		p.next()
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *parser) parseMap(pos int) (node, error) {
	m := &mapNode{}
	seen := map[string]struct{}{}
	for !p.isPunct("}") {
		keyTok := p.next()
		if keyTok.kind != tokString && keyTok.kind != tokIdent {
			return nil, errorf(keyTok.pos, "expected map key, found %s", describe(keyTok))
		}
		if _, dup := seen[keyTok.text]; dup {
			return nil, errorf(keyTok.pos, "duplicate map key %q", keyTok.text)
		}
		seen[keyTok.text] = struct{}{}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		m.keys = append(m.keys, keyTok.text)
		m.vals = append(m.vals, val)
		if !p.isPunct(",") {
			break
		}
		p.next()
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	m.pos = pos
	return m, nil
}

func describe(tok token) string {
	switch tok.kind {
	case tokEOF:
		return "end of expression"
	case tokString:
		return strconv.Quote(tok.text)
	default:
		return fmt.Sprintf("%q", tok.text)
	}
}
