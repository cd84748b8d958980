package starlark

import (
	"testing"

	"github.com/leapstack-labs/leaptmpl/internal/testutil"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/engine"
	"github.com/leapstack-labs/leaptmpl/pkg/eval"
	"github.com/leapstack-labs/leaptmpl/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFilters(t *testing.T, files map[string]string) eval.Filters {
	t.Helper()
	modules, err := LoadDir(testutil.WriteTree(t, files))
	require.NoError(t, err)
	filters, err := Filters(modules, NewThreadPool(4, testutil.NewTestLogger(t)))
	require.NoError(t, err)
	return filters
}

func TestFilters_Call(t *testing.T) {
	filters := loadFilters(t, map[string]string{
		"text.star": `
def shout(s, times=1):
    return s.upper() + "!" * times

def keys(d):
    return sorted(d.keys())

LIMIT = 3
`,
	})

	require.Contains(t, filters, "shout")
	require.Contains(t, filters, "keys")
	assert.NotContains(t, filters, "LIMIT", "non-callable exports are not filters")

	got, err := filters["shout"](value.String("hey"), nil, map[string]value.Value{"times": value.Int(2)})
	require.NoError(t, err)
	assert.Equal(t, value.String("HEY!!"), got)

	got, err = filters["keys"](value.Object{"b": value.Int(1), "a": value.Int(2)}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.String("a"), value.String("b")}, got)
}

func TestFilters_CallError(t *testing.T) {
	filters := loadFilters(t, map[string]string{
		"f.star": `
def boom(s):
    fail("bad input: " + s)
`,
	})

	_, err := filters["boom"](value.String("x"), nil, nil)
	assert.ErrorContains(t, err, "bad input: x")
}

func TestFilters_Duplicate(t *testing.T) {
	modules, err := LoadDir(testutil.WriteTree(t, map[string]string{
		"a.star": "def dup(s):\n    return s\n",
		"b.star": "def dup(s):\n    return s\n",
	}))
	require.NoError(t, err)

	_, err = Filters(modules, NewThreadPool(1, nil))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.File, "b.star")
	assert.Contains(t, le.Message, `filter "dup" is already defined`)
}

func TestFilters_InTemplates(t *testing.T) {
	filters := loadFilters(t, map[string]string{
		"money.star": `
def cents(n, symbol="$"):
    return "%s%d.%02d" % (symbol, n // 100, n % 100)

def boom(n):
    fail("no")
`,
	})

	reg := engine.New(engine.WithFilters(filters), engine.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, reg.Register("price", `{{ total | cents }} / {{ total | cents(symbol="€") }}`))
	require.NoError(t, reg.Register("broken", `{{ total | boom }}`))
	require.NoError(t, reg.Resolve())

	ctx := eval.Context{"total": value.Int(1234)}
	out, err := reg.Render("price", ctx)
	require.NoError(t, err)
	assert.Equal(t, "$12.34 / €12.34", out)

	_, err = reg.Render("broken", ctx)
	assert.ErrorIs(t, err, core.FilterArgumentError)
	assert.ErrorContains(t, err, "broken:1:10")
	assert.Contains(t, reg.Filters(), "cents")
}
