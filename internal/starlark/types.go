// Package starlark runs user-defined template filters written in Starlark.
//
// Every *.star file in the filters directory is executed once; each exported
// callable becomes a filter named after its global. Calls convert template
// values to Starlark values and back.
package starlark

import (
	"fmt"
	"maps"
	"slices"

	"github.com/leapstack-labs/leaptmpl/pkg/value"
	"go.starlark.net/starlark"
)

// ToStarlark converts a template value to a Starlark value. Undefined and
// None both become None; objects become dicts with sorted insertion order.
func ToStarlark(v value.Value) (starlark.Value, error) {
	switch val := v.(type) {
	case nil, value.Undefined, value.None:
		return starlark.None, nil

	case value.Bool:
		return starlark.Bool(val), nil

	case value.Int:
		return starlark.MakeInt64(int64(val)), nil

	case value.Float:
		return starlark.Float(val), nil

	case value.String:
		return starlark.String(val), nil

	case value.Safe:
		return starlark.String(val), nil

	case value.Array:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := ToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case value.Object:
		dict := starlark.NewDict(len(val))
		for _, k := range slices.Sorted(maps.Keys(val)) {
			sv, err := ToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported value kind: %s", v.Kind())
	}
}

// FromStarlark converts a Starlark value to a template value.
func FromStarlark(v starlark.Value) (value.Value, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return value.None{}, nil

	case starlark.Bool:
		return value.Bool(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s out of range", val)
		}
		return value.Int(i64), nil

	case starlark.Float:
		return value.Float(val), nil

	case starlark.String:
		return value.String(val), nil

	case starlark.Indexable: // list, tuple
		out := make(value.Array, val.Len())
		for i := range val.Len() {
			item, err := FromStarlark(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = item
		}
		return out, nil

	case *starlark.Dict:
		out := make(value.Object, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := FromStarlark(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", string(key), err)
			}
			out[string(key)] = gv
		}
		return out, nil

	default:
		return nil, fmt.Errorf("cannot convert %s to a template value", v.Type())
	}
}
