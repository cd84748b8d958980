package starlark

import (
	"github.com/leapstack-labs/leaptmpl/pkg/eval"
	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Predeclared returns the globals visible to every filter file:
//
//	escape_html(s)  HTML-escapes a string like the escape filter
//	json            the go.starlark.net json module (encode, decode, indent)
//	struct          starlarkstruct constructor
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"escape_html": starlark.NewBuiltin("escape_html", escapeHTML),
		"json":        json.Module,
		"struct":      starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}

func escapeHTML(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(eval.EscapeHTML(s)), nil
}
