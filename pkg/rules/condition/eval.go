package condition

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Expression is a compiled condition. It is immutable and safe for concurrent use.
type Expression struct {
	source string
	root   Node
}

// Compile parses src into an Expression.
func Compile(src string) (*Expression, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Expression{source: src, root: root}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and constants.
func MustCompile(src string) *Expression {
	expr, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return expr
}

// Source returns the original condition text.
func (e *Expression) Source() string {
	return e.source
}

// String returns the fully parenthesized form of the expression.
func (e *Expression) String() string {
	return e.root.String()
}

// Eval evaluates the expression against vars and reports whether the result is truthy.
func (e *Expression) Eval(vars map[string]any) (bool, error) {
	v, err := eval(e.root, vars)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

func eval(n Node, vars map[string]any) (any, error) {
	switch node := n.(type) {
	case *Literal:
		return node.Value, nil

	case *FieldRef:
		root, ok := vars[node.Path[0]]
		if !ok {
			return nil, newEvalError(n, "%q is not defined", node.Path[0])
		}
		v, _ := Resolve(root, node.Path[1:]...)
		return v, nil

	case *ListLiteral:
		items := make([]any, len(node.Items))
		for i, item := range node.Items {
			v, err := eval(item, vars)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil

	case *Not:
		v, err := eval(node.Operand, vars)
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil

	case *Binary:
		return evalBinary(node, vars)

	default:
		return nil, newEvalError(n, "unsupported node %T", n)
	}
}

func evalBinary(n *Binary, vars map[string]any) (any, error) {
	left, err := eval(n.Left, vars)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case OpAnd:
		if !Truthy(left) {
			return false, nil
		}
		right, err := eval(n.Right, vars)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	case OpOr:
		if Truthy(left) {
			return true, nil
		}
		right, err := eval(n.Right, vars)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	}

	right, err := eval(n.Right, vars)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case OpEq:
		return equal(left, right), nil
	case OpNe:
		return !equal(left, right), nil
	case OpLt, OpLe, OpGt, OpGe:
		cmp, err := compare(n, left, right)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case OpLt:
			return cmp < 0, nil
		case OpLe:
			return cmp <= 0, nil
		case OpGt:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case OpIn:
		return contains(n, right, left)
	default:
		return nil, newEvalError(n, "unknown operator %s", n.Op)
	}
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := ToNumber(a); ok {
		bf, ok := ToNumber(b)
		return ok && af == bf
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return reflect.DeepEqual(a, b)
}

func compare(n Node, a, b any) (int, error) {
	if af, ok := ToNumber(a); ok {
		if bf, ok := ToNumber(b); ok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), nil
		}
	}
	return 0, newEvalError(n, "cannot order %T and %T", a, b)
}

func contains(n Node, haystack, needle any) (bool, error) {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		if !ok {
			return false, newEvalError(n, "left operand of in must be a string when searching a string, got %T", needle)
		}
		return strings.Contains(h, s), nil
	case nil:
		return false, nil
	}

	rv := reflect.ValueOf(haystack)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if equal(rv.Index(i).Interface(), needle) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Map:
		key, ok := needle.(string)
		if !ok || rv.Type().Key().Kind() != reflect.String {
			return false, nil
		}
		return rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key())).IsValid(), nil
	default:
		return false, newEvalError(n, "right operand of in must be a list, map or string, got %T", haystack)
	}
}

// Truthy reports whether v counts as true: nil, false, zero numbers and empty strings do not.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	}
	if f, ok := ToNumber(v); ok {
		return f != 0
	}
	return true
}

// ToNumber converts Go numeric kinds and json.Number to float64. Strings and other
// types are not coerced.
func ToNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Resolve walks path through nested maps starting at root. It reports false when a
// segment is missing or a non-map value is reached before the end of the path.
func Resolve(root any, path ...string) (any, bool) {
	current := root
	for _, key := range path {
		switch m := current.(type) {
		case map[string]any:
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			current = v
		default:
			rv := reflect.ValueOf(current)
			if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
				return nil, false
			}
			v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
			if !v.IsValid() {
				return nil, false
			}
			current = v.Interface()
		}
	}
	return current, true
}
