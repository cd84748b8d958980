// Package value defines the dynamic values templates operate on.
//
// A Value is one of Undefined, None, Bool, Int, Float, String, Safe, Array or
// Object. Host data enters through FromGo or the Decode helpers; the engine
// never sees raw Go values.
package value

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value.
type Kind uint8

// Value kinds.
const (
	KindUndefined Kind = iota
	KindNone
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNone:      "none",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindArray:     "array",
	KindObject:    "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a template value with string conversion and truthiness.
type Value interface {
	Kind() Kind
	String() string
	Truth() bool
}

// Undefined is the result of looking up a path that does not exist.
// Path records what was looked up, for error messages.
type Undefined struct {
	Path string
}

func (Undefined) Kind() Kind     { return KindUndefined }
func (Undefined) String() string { return "" }
func (Undefined) Truth() bool    { return false }

// None represents the absence of a value.
type None struct{}

func (None) Kind() Kind     { return KindNone }
func (None) String() string { return "" }
func (None) Truth() bool    { return false }

// Bool wraps a boolean.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Bool) Truth() bool { return bool(b) }

// Int wraps a 64-bit integer.
type Int int64

func (Int) Kind() Kind       { return KindInt }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (i Int) Truth() bool    { return i != 0 }

// Float wraps a 64-bit float.
type Float float64

func (Float) Kind() Kind { return KindFloat }

// String renders integral floats with a trailing ".0" so they stay
// distinguishable from integers.
func (f Float) String() string {
	v := float64(f)
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !math.IsInf(v, 0) && !math.IsNaN(v) && !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
func (f Float) Truth() bool { return f != 0 }

// String wraps text that is escaped on output when autoescaping is on.
type String string

func (String) Kind() Kind       { return KindString }
func (s String) String() string { return string(s) }
func (s String) Truth() bool    { return s != "" }

// Safe is text already marked safe for output; it is never escaped.
type Safe string

func (Safe) Kind() Kind       { return KindString }
func (s Safe) String() string { return string(s) }
func (s Safe) Truth() bool    { return s != "" }

// Array is an ordered sequence of values.
type Array []Value

func (Array) Kind() Kind { return KindArray }
func (a Array) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = Repr(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (a Array) Truth() bool { return len(a) > 0 }

// Object is a string-keyed mapping. Iteration is in sorted key order.
type Object map[string]Value

func (Object) Kind() Kind { return KindObject }
func (o Object) String() string {
	keys := o.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Quote(k) + ": " + Repr(o[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (o Object) Truth() bool { return len(o) > 0 }

// Keys returns the object keys in sorted order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsSafe reports whether v is text marked safe for output.
func IsSafe(v Value) bool {
	_, ok := v.(Safe)
	return ok
}

// IsUndefined reports whether v is Undefined.
func IsUndefined(v Value) bool {
	return v == nil || v.Kind() == KindUndefined
}

// IsNumber reports whether v is an Int or a Float.
func IsNumber(v Value) bool {
	k := v.Kind()
	return k == KindInt || k == KindFloat
}

// Repr renders v the way it appears inside a container: strings quoted.
func Repr(v Value) string {
	switch t := v.(type) {
	case String:
		return strconv.Quote(string(t))
	case Safe:
		return strconv.Quote(string(t))
	case None:
		return "none"
	case Undefined:
		return "undefined"
	default:
		return v.String()
	}
}

// Len returns the length of strings (in runes), arrays and objects.
func Len(v Value) (int, bool) {
	switch t := v.(type) {
	case String:
		return len([]rune(string(t))), true
	case Safe:
		return len([]rune(string(t))), true
	case Array:
		return len(t), true
	case Object:
		return len(t), true
	default:
		return 0, false
	}
}
