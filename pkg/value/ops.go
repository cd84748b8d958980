package value

import (
	"math"
	"strings"

	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/token"
)

// Operator errors carry no position; the evaluator stamps one on.

func typeMismatch(format string, args ...any) *core.Error {
	return core.Errorf(core.TypeMismatch, token.Position{}, format, args...)
}

// toFloat widens a number to float64.
func toFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case Int:
		return float64(t), true
	case Float:
		return float64(t), true
	default:
		return 0, false
	}
}

// Equal reports deep equality. Ints and floats compare numerically and
// String equals Safe with the same text.
func Equal(a, b Value) bool {
	if IsNumber(a) && IsNumber(b) {
		if ai, ok := a.(Int); ok {
			if bi, ok := b.(Int); ok {
				return ai == bi
			}
		}
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return af == bf
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch t := a.(type) {
	case Undefined, None:
		return true
	case Bool:
		return t == b.(Bool)
	case String, Safe:
		return a.String() == b.String()
	case Array:
		o := b.(Array)
		if len(t) != len(o) {
			return false
		}
		for i := range t {
			if !Equal(t[i], o[i]) {
				return false
			}
		}
		return true
	case Object:
		o := b.(Object)
		if len(t) != len(o) {
			return false
		}
		for k, v := range t {
			ov, ok := o[k]
			if !ok || !Equal(v, ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two numbers or two strings, returning -1, 0 or +1.
func Compare(a, b Value) (int, error) {
	if IsNumber(a) && IsNumber(b) {
		if ai, ok := a.(Int); ok {
			if bi, ok := b.(Int); ok {
				return cmpOrdered(ai, bi), nil
			}
		}
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return cmpOrdered(af, bf), nil
	}
	if a.Kind() == KindString && b.Kind() == KindString {
		return strings.Compare(a.String(), b.String()), nil
	}
	return 0, typeMismatch("cannot compare %s with %s", a.Kind(), b.Kind())
}

func cmpOrdered[T Int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Arithmetic applies +, -, *, / or % to two numbers. Int op Int stays Int
// except for "/", which always yields Float.
func Arithmetic(op token.TokenType, a, b Value) (Value, error) {
	if !IsNumber(a) || !IsNumber(b) {
		return nil, typeMismatch("unsupported operand types for %s: %s and %s", op, a.Kind(), b.Kind())
	}

	ai, aIsInt := a.(Int)
	bi, bIsInt := b.(Int)
	if aIsInt && bIsInt {
		switch op {
		case token.PLUS:
			return ai + bi, nil
		case token.MINUS:
			return ai - bi, nil
		case token.STAR:
			return ai * bi, nil
		case token.PERCENT:
			if bi == 0 {
				return nil, core.Errorf(core.DivisionByZero, token.Position{}, "integer modulo by zero")
			}
			return ai % bi, nil
		}
	}

	af, _ := toFloat(a)
	bf, _ := toFloat(b)
	switch op {
	case token.PLUS:
		return Float(af + bf), nil
	case token.MINUS:
		return Float(af - bf), nil
	case token.STAR:
		return Float(af * bf), nil
	case token.SLASH:
		if bf == 0 {
			return nil, core.Errorf(core.DivisionByZero, token.Position{}, "division by zero")
		}
		return Float(af / bf), nil
	case token.PERCENT:
		if bf == 0 {
			return nil, core.Errorf(core.DivisionByZero, token.Position{}, "modulo by zero")
		}
		return Float(math.Mod(af, bf)), nil
	default:
		return nil, typeMismatch("unknown arithmetic operator %s", op)
	}
}

// Negate applies unary minus to a number.
func Negate(v Value) (Value, error) {
	switch t := v.(type) {
	case Int:
		return -t, nil
	case Float:
		return -t, nil
	default:
		return nil, typeMismatch("bad operand type for unary -: %s", v.Kind())
	}
}

// Concat joins the string forms of a and b. The result is safe only when
// both sides are.
func Concat(a, b Value) Value {
	s := a.String() + b.String()
	if IsSafe(a) && IsSafe(b) {
		return Safe(s)
	}
	return String(s)
}

// Contains implements the "in" operator: element of an array, substring of
// a string, or key of an object.
func Contains(container, item Value) (bool, error) {
	switch t := container.(type) {
	case Array:
		for _, v := range t {
			if Equal(v, item) {
				return true, nil
			}
		}
		return false, nil
	case String, Safe:
		if item.Kind() != KindString {
			return false, typeMismatch("'in <string>' requires string as left operand, not %s", item.Kind())
		}
		return strings.Contains(container.String(), item.String()), nil
	case Object:
		if item.Kind() != KindString {
			return false, typeMismatch("object keys are strings, not %s", item.Kind())
		}
		_, ok := t[item.String()]
		return ok, nil
	default:
		return false, typeMismatch("%s is not a container", container.Kind())
	}
}

// Iterate returns the elements of an iterable. Objects yield their keys in
// sorted order together with the values; arrays and strings yield nil keys.
func Iterate(v Value) (keys []Value, items []Value, err error) {
	switch t := v.(type) {
	case Array:
		return nil, t, nil
	case Object:
		for _, k := range t.Keys() {
			keys = append(keys, String(k))
			items = append(items, t[k])
		}
		return keys, items, nil
	case String, Safe:
		for _, r := range v.String() {
			items = append(items, String(string(r)))
		}
		return nil, items, nil
	case None:
		return nil, nil, nil
	default:
		return nil, nil, typeMismatch("%s is not iterable", v.Kind())
	}
}
