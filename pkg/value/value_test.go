package value

import (
	"testing"

	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_StringAndTruth(t *testing.T) {
	tests := []struct {
		name  string
		v     Value
		str   string
		truth bool
	}{
		{"undefined", Undefined{Path: "x"}, "", false},
		{"none", None{}, "", false},
		{"true", Bool(true), "true", true},
		{"zero int", Int(0), "0", false},
		{"int", Int(42), "42", true},
		{"float", Float(1.5), "1.5", true},
		{"integral float", Float(2), "2.0", true},
		{"empty string", String(""), "", false},
		{"safe", Safe("<b>"), "<b>", true},
		{"array", Array{Int(1), String("a")}, `[1, "a"]`, true},
		{"empty array", Array{}, "[]", false},
		{"object", Object{"b": Int(2), "a": Bool(false)}, `{"a": false, "b": 2}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.str, tt.v.String())
			assert.Equal(t, tt.truth, tt.v.Truth())
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(2), Float(2.0)))
	assert.True(t, Equal(String("a"), Safe("a")))
	assert.True(t, Equal(Array{Int(1), Object{"k": None{}}}, Array{Int(1), Object{"k": None{}}}))
	assert.False(t, Equal(Int(1), String("1")))
	assert.False(t, Equal(Object{"a": Int(1)}, Object{"b": Int(1)}))
}

func TestCompare(t *testing.T) {
	c, err := Compare(Int(1), Float(1.5))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare(String("b"), String("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	_, err = Compare(String("a"), Int(1))
	assert.ErrorIs(t, err, core.TypeMismatch)
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		op      token.TokenType
		a, b    Value
		want    Value
		wantErr core.Kind
	}{
		{name: "int add", op: token.PLUS, a: Int(2), b: Int(3), want: Int(5)},
		{name: "promote", op: token.STAR, a: Float(10), b: Int(2), want: Float(20)},
		{name: "division is float", op: token.SLASH, a: Int(7), b: Int(2), want: Float(3.5)},
		{name: "int modulo", op: token.PERCENT, a: Int(7), b: Int(3), want: Int(1)},
		{name: "string plus number", op: token.PLUS, a: String("a"), b: Int(1), wantErr: core.TypeMismatch},
		{name: "divide by zero", op: token.SLASH, a: Int(1), b: Int(0), wantErr: core.DivisionByZero},
		{name: "modulo by zero", op: token.PERCENT, a: Int(1), b: Int(0), wantErr: core.DivisionByZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Arithmetic(tt.op, tt.a, tt.b)
			if tt.wantErr != core.KindUnknown {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContains(t *testing.T) {
	ok, err := Contains(Array{Int(1), Int(2)}, Float(2))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Contains(String("hello"), String("ell"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Contains(Object{"k": None{}}, String("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Contains(Int(3), Int(3))
	assert.ErrorIs(t, err, core.TypeMismatch)
}

func TestConcat_Safety(t *testing.T) {
	assert.Equal(t, Safe("<a><b>"), Concat(Safe("<a>"), Safe("<b>")))
	assert.Equal(t, String("<a>1"), Concat(Safe("<a>"), Int(1)))
}

func TestIterate(t *testing.T) {
	keys, items, err := Iterate(Object{"b": Int(2), "a": Int(1)})
	require.NoError(t, err)
	assert.Equal(t, []Value{String("a"), String("b")}, keys)
	assert.Equal(t, []Value{Int(1), Int(2)}, items)

	_, _, err = Iterate(Int(3))
	assert.ErrorIs(t, err, core.TypeMismatch)
}
