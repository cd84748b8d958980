package eval

import "github.com/leapstack-labs/leaptmpl/pkg/value"

// tests are the predicates available to "x is name".
var tests = map[string]func(value.Value) bool{
	"defined":   func(v value.Value) bool { return !value.IsUndefined(v) },
	"undefined": value.IsUndefined,
	"none":      func(v value.Value) bool { return v.Kind() == value.KindNone },
	"string":    func(v value.Value) bool { return v.Kind() == value.KindString },
	"number":    value.IsNumber,
	"iterable": func(v value.Value) bool {
		k := v.Kind()
		return k == value.KindArray || k == value.KindObject || k == value.KindString
	},
	"odd": func(v value.Value) bool {
		i, ok := v.(value.Int)
		return ok && i%2 != 0
	},
	"even": func(v value.Value) bool {
		i, ok := v.(value.Int)
		return ok && i%2 == 0
	},
}
