package settingsexpr

import (
	"errors"
	"fmt"
	"math"
)

type node interface {
	eval(scope Scope) (any, error)
	refs(add func(string))
}

type literalNode struct{ v any }

func (n *literalNode) eval(Scope) (any, error) { return n.v, nil }
func (n *literalNode) refs(func(string))       {}

type identNode struct {
	name string
	pos  int
}

func (n *identNode) eval(scope Scope) (any, error) {
	v, ok := scope.Lookup(n.name)
	if !ok {
		return nil, errorf(n.pos, "name %q is not defined", n.name)
	}
	out, err := Normalize(v)
	if err != nil {
		return nil, errorf(n.pos, "%s: %v", n.name, err)
	}
	return out, nil
}

func (n *identNode) refs(add func(string)) { add(n.name) }

type listNode struct{ items []node }

func (n *listNode) eval(scope Scope) (any, error) {
	out := make([]any, 0, len(n.items))
	for _, item := range n.items {
		v, err := item.eval(scope)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (n *listNode) refs(add func(string)) {
	for _, item := range n.items {
		item.refs(add)
	}
}

type mapNode struct {
	keys []string
	vals []node
	pos  int
}

func (n *mapNode) eval(scope Scope) (any, error) {
	out := make(map[string]any, len(n.keys))
	for i, key := range n.keys {
		v, err := n.vals[i].eval(scope)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (n *mapNode) refs(add func(string)) {
	for _, v := range n.vals {
		v.refs(add)
	}
}

type negNode struct {
	x   node
	pos int
}

func (n *negNode) eval(scope Scope) (any, error) {
	v, err := n.x.eval(scope)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case int:
		if t == math.MinInt {
			return nil, errorf(n.pos, "integer overflow")
		}
		return -t, nil
	case float64:
		return -t, nil
	}
	return nil, errorf(n.pos, "unsupported operand type for unary -: %s", TypeName(v))
}

func (n *negNode) refs(add func(string)) { n.x.refs(add) }

type binaryNode struct {
	op          byte
	left, right node
	pos         int
}

func (n *binaryNode) eval(scope Scope) (any, error) {
	l, err := n.left.eval(scope)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(scope)
	if err != nil {
		return nil, err
	}
	var out any
	if n.op == '+' {
		out, err = add(l, r)
	} else {
		out, err = arith(n.op, l, r)
	}
	switch err {
	case nil:
		return out, nil
	case errOperands:
		return nil, errorf(n.pos, "unsupported operand types for %c: %s and %s", n.op, TypeName(l), TypeName(r))
	}
	return nil, errorf(n.pos, "%v", err)
}

func (n *binaryNode) refs(add func(string)) {
	n.left.refs(add)
	n.right.refs(add)
}

type indexNode struct {
	x, key node
	pos    int
}

func (n *indexNode) eval(scope Scope) (any, error) {
	x, err := n.x.eval(scope)
	if err != nil {
		return nil, err
	}
	key, err := n.key.eval(scope)
	if err != nil {
		return nil, err
	}
	switch t := x.(type) {
	case []any:
		i, ok := key.(int)
		if !ok {
			return nil, errorf(n.pos, "list index must be int, not %s", TypeName(key))
		}
		if i < 0 {
			i += len(t)
		}
		if i < 0 || i >= len(t) {
			return nil, errorf(n.pos, "list index %d out of range (len %d)", key, len(t))
		}
		return t[i], nil
	case map[string]any:
		k, ok := key.(string)
		if !ok {
			return nil, errorf(n.pos, "map key must be string, not %s", TypeName(key))
		}
		v, ok := t[k]
		if !ok {
			return nil, errorf(n.pos, "key %q not found (have %v)", k, sortedKeys(t))
		}
		return v, nil
	}
	return nil, errorf(n.pos, "%s is not indexable", TypeName(x))
}

func (n *indexNode) refs(add func(string)) {
	n.x.refs(add)
	n.key.refs(add)
}

// Add applies + to two data-model values: list concat, map merge (right
// wins), string concat, or numeric addition.
func Add(l, r any) (any, error) {
	out, err := add(l, r)
	if err == errOperands {
		return nil, fmt.Errorf("unsupported operand types for +: %s and %s", TypeName(l), TypeName(r))
	}
	return out, err
}

var (
	errIntOverflow   = errors.New("integer overflow")
	errFloatOverflow = errors.New("float overflow")
	errOperands      = errors.New("unsupported operand types")
)

// add implements +. Operands are fresh values, so they can be reused.
func add(l, r any) (any, error) {
	switch lv := l.(type) {
	case string:
		if rv, ok := r.(string); ok {
			return lv + rv, nil
		}
	case []any:
		if rv, ok := r.([]any); ok {
			out := make([]any, 0, len(lv)+len(rv))
			out = append(out, lv...)
			return append(out, rv...), nil
		}
	case map[string]any:
		if rv, ok := r.(map[string]any); ok {
			out := make(map[string]any, len(lv)+len(rv))
			for k, v := range lv {
				out[k] = v
			}
			for k, v := range rv {
				out[k] = v
			}
			return out, nil
		}
	}
	return arith('+', l, r)
}

func arith(op byte, l, r any) (any, error) {
	li, lInt := l.(int)
	ri, rInt := r.(int)
	if lInt && rInt {
		if op == '+' {
			s := li + ri
			if (ri > 0 && s < li) || (ri < 0 && s > li) {
				return nil, errIntOverflow
			}
			return s, nil
		}
		d := li - ri
		if (ri > 0 && d > li) || (ri < 0 && d < li) {
			return nil, errIntOverflow
		}
		return d, nil
	}
	lf, ok := toFloat(l)
	if !ok {
		return nil, errOperands
	}
	rf, ok := toFloat(r)
	if !ok {
		return nil, errOperands
	}
	out := lf + rf
	if op == '-' {
		out = lf - rf
	}
	if math.IsInf(out, 0) {
		return nil, errFloatOverflow
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
