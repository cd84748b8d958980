package starlark

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/leapstack-labs/leaptmpl/pkg/eval"
	"github.com/leapstack-labs/leaptmpl/pkg/value"
	"go.starlark.net/starlark"
)

// Filters turns the callable exports of modules into template filters.
// Non-callable exports are ignored. Two modules exporting the same name is a
// LoadError on the later file.
func Filters(modules []*Module, pool *ThreadPool) (eval.Filters, error) {
	filters := make(eval.Filters)
	owners := make(map[string]string)

	for _, m := range modules {
		for _, name := range slices.Sorted(maps.Keys(m.Exports)) {
			fn, ok := m.Exports[name].(starlark.Callable)
			if !ok {
				continue
			}
			if err := validateName(name); err != nil {
				return nil, &LoadError{File: m.Path, Message: err.Error()}
			}
			if prev, dup := owners[name]; dup {
				return nil, &LoadError{
					File:    m.Path,
					Message: fmt.Sprintf("filter %q is already defined in %s", name, prev),
				}
			}
			owners[name] = m.Path
			filters[name] = wrap(m.Name, name, fn, pool)
		}
	}
	return filters, nil
}

// wrap adapts fn to eval.FilterFunc. The piped value is passed as the first
// positional argument.
func wrap(module, name string, fn starlark.Callable, pool *ThreadPool) eval.FilterFunc {
	threadName := module + "." + name
	return func(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		sargs := make(starlark.Tuple, 0, len(args)+1)
		for _, a := range append([]value.Value{v}, args...) {
			sv, err := ToStarlark(a)
			if err != nil {
				return nil, err
			}
			sargs = append(sargs, sv)
		}

		skwargs := make([]starlark.Tuple, 0, len(kwargs))
		for _, k := range slices.Sorted(maps.Keys(kwargs)) {
			sv, err := ToStarlark(kwargs[k])
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", k, err)
			}
			skwargs = append(skwargs, starlark.Tuple{starlark.String(k), sv})
		}

		thread := pool.Get(threadName)
		defer pool.Put(thread)

		out, err := starlark.Call(thread, fn, sargs, skwargs)
		if err != nil {
			var evalErr *starlark.EvalError
			if errors.As(err, &evalErr) {
				return nil, errors.New(evalErr.Msg)
			}
			return nil, err
		}
		return FromStarlark(out)
	}
}
