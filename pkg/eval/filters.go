package eval

import (
	"fmt"
	"maps"
	"slices"

	"github.com/leapstack-labs/leaptmpl/pkg/value"
)

// FilterFunc transforms v. args holds positional arguments in order and
// kwargs the named ones. Returning a plain error reports a
// FilterArgumentError at the call site.
type FilterFunc func(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error)

// Filters maps filter names to implementations.
type Filters map[string]FilterFunc

// acceptsUndefined lists filters that receive undefined input even in
// strict mode.
var acceptsUndefined = map[string]bool{
	"default": true,
	"d":       true,
}

// Builtins returns a fresh copy of the built-in filter set.
func Builtins() Filters {
	return maps.Clone(builtins)
}

// Names returns the filter names in f, sorted.
func (f Filters) Names() []string {
	return slices.Sorted(maps.Keys(f))
}

// bindArgs maps positional and named arguments onto the declared parameter
// names. Missing parameters are simply absent from the result.
func bindArgs(args []value.Value, kwargs map[string]value.Value, params ...string) (map[string]value.Value, error) {
	if len(args) > len(params) {
		return nil, fmt.Errorf("expected at most %d argument(s), got %d", len(params), len(args))
	}

	bound := make(map[string]value.Value, len(params))
	for i, v := range args {
		bound[params[i]] = v
	}

	for name, v := range kwargs {
		known := false
		for _, p := range params {
			if p == name {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unexpected argument %q", name)
		}
		if _, dup := bound[name]; dup {
			return nil, fmt.Errorf("argument %q given both positionally and by name", name)
		}
		bound[name] = v
	}
	return bound, nil
}

// requireArgs is bindArgs plus a check that the first n params are present.
func requireArgs(args []value.Value, kwargs map[string]value.Value, n int, params ...string) (map[string]value.Value, error) {
	bound, err := bindArgs(args, kwargs, params...)
	if err != nil {
		return nil, err
	}
	for _, p := range params[:n] {
		if _, ok := bound[p]; !ok {
			return nil, fmt.Errorf("missing required argument %q", p)
		}
	}
	return bound, nil
}

func intArg(bound map[string]value.Value, name string, def int) (int, error) {
	v, ok := bound[name]
	if !ok {
		return def, nil
	}
	i, ok := v.(value.Int)
	if !ok {
		return 0, fmt.Errorf("argument %q must be an int, not %s", name, v.Kind())
	}
	return int(i), nil
}

func stringArg(bound map[string]value.Value, name, def string) (string, error) {
	v, ok := bound[name]
	if !ok {
		return def, nil
	}
	if v.Kind() != value.KindString {
		return "", fmt.Errorf("argument %q must be a string, not %s", name, v.Kind())
	}
	return v.String(), nil
}

func boolArg(bound map[string]value.Value, name string, def bool) (bool, error) {
	v, ok := bound[name]
	if !ok {
		return def, nil
	}
	b, ok := v.(value.Bool)
	if !ok {
		return false, fmt.Errorf("argument %q must be a bool, not %s", name, v.Kind())
	}
	return bool(b), nil
}
