package starlark

import (
	"testing"

	"github.com/leapstack-labs/leaptmpl/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestToStarlark(t *testing.T) {
	tests := []struct {
		name string
		in   value.Value
		want string
	}{
		{"undefined", value.Undefined{}, "None"},
		{"none", value.None{}, "None"},
		{"bool", value.Bool(true), "True"},
		{"int", value.Int(42), "42"},
		{"float", value.Float(1.5), "1.5"},
		{"string", value.String("hi"), `"hi"`},
		{"safe", value.Safe("<b>"), `"<b>"`},
		{"array", value.Array{value.Int(1), value.String("a")}, `[1, "a"]`},
		{"object sorted", value.Object{"b": value.Int(2), "a": value.Int(1)}, `{"a": 1, "b": 2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToStarlark(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFromStarlark(t *testing.T) {
	dict := starlark.NewDict(1)
	require.NoError(t, dict.SetKey(starlark.String("k"), starlark.MakeInt(1)))

	tests := []struct {
		name string
		in   starlark.Value
		want value.Value
	}{
		{"none", starlark.None, value.None{}},
		{"bool", starlark.False, value.Bool(false)},
		{"int", starlark.MakeInt(7), value.Int(7)},
		{"float", starlark.Float(2.5), value.Float(2.5)},
		{"string", starlark.String("x"), value.String("x")},
		{"list", starlark.NewList([]starlark.Value{starlark.String("a")}), value.Array{value.String("a")}},
		{"tuple", starlark.Tuple{starlark.MakeInt(1), starlark.None}, value.Array{value.Int(1), value.None{}}},
		{"dict", dict, value.Object{"k": value.Int(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromStarlark(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromStarlark_Errors(t *testing.T) {
	nonStringKey := starlark.NewDict(1)
	require.NoError(t, nonStringKey.SetKey(starlark.MakeInt(1), starlark.None))

	huge := starlark.MakeInt64(1).Lsh(100)

	tests := []struct {
		name    string
		in      starlark.Value
		wantErr string
	}{
		{"non-string key", nonStringKey, "dict key must be string"},
		{"out of range", huge, "out of range"},
		{"function", starlark.NewBuiltin("f", nil), "cannot convert builtin_function_or_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromStarlark(tt.in)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
