package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/token"
	"github.com/leapstack-labs/leaptmpl/pkg/value"
)

var builtins = Filters{
	"upper":       stringFilter(strings.ToUpper),
	"lower":       stringFilter(strings.ToLower),
	"capitalize":  stringFilter(capitalize),
	"title":       stringFilter(func(s string) string { return cases.Title(language.Und).String(s) }),
	"trim":        stringFilter(strings.TrimSpace),
	"striptags":   stringFilter(stripTags),
	"wordcount":   wordcount,
	"length":      length,
	"default":     defaultFilter,
	"d":           defaultFilter,
	"join":        join,
	"safe":        safe,
	"escape":      escape,
	"e":           escape,
	"replace":     replace,
	"first":       first,
	"last":        last,
	"reverse":     reverse,
	"sort":        sortFilter,
	"round":       round,
	"abs":         abs,
	"int":         toInt,
	"float":       toFloat,
	"string":      toString,
	"truncate":    truncate,
	"json_encode": jsonEncode,
}

var errNoArgs = errors.New("takes no arguments")

// stringFilter adapts a string transform that takes no arguments.
func stringFilter(fn func(string) string) FilterFunc {
	return func(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		if len(args) > 0 || len(kwargs) > 0 {
			return nil, errNoArgs
		}
		return value.String(fn(v.String())), nil
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// stripTags returns the text content of s with markup removed and runs of
// whitespace collapsed.
func stripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func wordcount(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, errNoArgs
	}
	return value.Int(len(strings.Fields(v.String()))), nil
}

func length(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, errNoArgs
	}
	if value.IsUndefined(v) {
		return value.Int(0), nil
	}
	n, ok := value.Len(v)
	if !ok {
		return nil, core.Errorf(core.TypeMismatch, token.Position{}, "%s has no length", v.Kind())
	}
	return value.Int(n), nil
}

// defaultFilter: value | default(fallback, boolean=false). With boolean set,
// any falsy value is replaced, not only undefined ones.
func defaultFilter(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	bound, err := requireArgs(args, kwargs, 1, "value", "boolean")
	if err != nil {
		return nil, err
	}
	falsy, err := boolArg(bound, "boolean", false)
	if err != nil {
		return nil, err
	}
	if value.IsUndefined(v) || (falsy && !v.Truth()) {
		return bound["value"], nil
	}
	return v, nil
}

func join(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	bound, err := bindArgs(args, kwargs, "sep")
	if err != nil {
		return nil, err
	}
	sep, err := stringArg(bound, "sep", "")
	if err != nil {
		return nil, err
	}
	arr, ok := v.(value.Array)
	if !ok {
		return nil, core.Errorf(core.TypeMismatch, token.Position{}, "join expects an array, not %s", v.Kind())
	}
	parts := make([]string, len(arr))
	for i, item := range arr {
		parts[i] = item.String()
	}
	return value.String(strings.Join(parts, sep)), nil
}

func safe(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, errNoArgs
	}
	return value.Safe(v.String()), nil
}

func escape(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, errNoArgs
	}
	return value.Safe(EscapeHTML(v.String())), nil
}

func replace(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	bound, err := requireArgs(args, kwargs, 2, "from", "to")
	if err != nil {
		return nil, err
	}
	from, err := stringArg(bound, "from", "")
	if err != nil {
		return nil, err
	}
	to, err := stringArg(bound, "to", "")
	if err != nil {
		return nil, err
	}
	return value.String(strings.ReplaceAll(v.String(), from, to)), nil
}

func first(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return edge(v, args, kwargs, 0)
}

func last(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return edge(v, args, kwargs, -1)
}

func edge(v value.Value, args []value.Value, kwargs map[string]value.Value, i int) (value.Value, error) {
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, errNoArgs
	}
	switch t := v.(type) {
	case value.Array:
		if len(t) == 0 {
			return value.Undefined{}, nil
		}
		if i < 0 {
			i = len(t) - 1
		}
		return t[i], nil
	case value.String, value.Safe:
		runes := []rune(v.String())
		if len(runes) == 0 {
			return value.String(""), nil
		}
		if i < 0 {
			i = len(runes) - 1
		}
		return value.String(string(runes[i])), nil
	default:
		return nil, core.Errorf(core.TypeMismatch, token.Position{}, "%s is not a sequence", v.Kind())
	}
}

func reverse(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, errNoArgs
	}
	switch t := v.(type) {
	case value.Array:
		out := slices.Clone(t)
		slices.Reverse(out)
		return out, nil
	case value.String, value.Safe:
		runes := []rune(v.String())
		slices.Reverse(runes)
		return value.String(string(runes)), nil
	default:
		return nil, core.Errorf(core.TypeMismatch, token.Position{}, "%s cannot be reversed", v.Kind())
	}
}

// sortFilter: array | sort(attribute="", reverse=false)
func sortFilter(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	bound, err := bindArgs(args, kwargs, "attribute", "reverse")
	if err != nil {
		return nil, err
	}
	attribute, err := stringArg(bound, "attribute", "")
	if err != nil {
		return nil, err
	}
	desc, err := boolArg(bound, "reverse", false)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(value.Array)
	if !ok {
		return nil, core.Errorf(core.TypeMismatch, token.Position{}, "sort expects an array, not %s", v.Kind())
	}

	key := func(item value.Value) value.Value {
		if attribute == "" {
			return item
		}
		if obj, ok := item.(value.Object); ok {
			if k, ok := obj[attribute]; ok {
				return k
			}
		}
		return value.None{}
	}

	out := slices.Clone(arr)
	var cmpErr error
	slices.SortStableFunc(out, func(a, b value.Value) int {
		c, err := value.Compare(key(a), key(b))
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		if desc {
			return -c
		}
		return c
	})
	if cmpErr != nil {
		return nil, cmpErr
	}
	return out, nil
}

func number(v value.Value) (float64, error) {
	switch t := v.(type) {
	case value.Int:
		return float64(t), nil
	case value.Float:
		return float64(t), nil
	default:
		return 0, core.Errorf(core.TypeMismatch, token.Position{}, "expected a number, not %s", v.Kind())
	}
}

// round: number | round(precision=0, method="common"|"ceil"|"floor")
func round(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	bound, err := bindArgs(args, kwargs, "precision", "method")
	if err != nil {
		return nil, err
	}
	precision, err := intArg(bound, "precision", 0)
	if err != nil {
		return nil, err
	}
	method, err := stringArg(bound, "method", "common")
	if err != nil {
		return nil, err
	}
	f, err := number(v)
	if err != nil {
		return nil, err
	}

	scale := math.Pow(10, float64(precision))
	switch method {
	case "common":
		f = math.Round(f*scale) / scale
	case "ceil":
		f = math.Ceil(f*scale) / scale
	case "floor":
		f = math.Floor(f*scale) / scale
	default:
		return nil, fmt.Errorf("unknown rounding method %q", method)
	}
	return value.Float(f), nil
}

func abs(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, errNoArgs
	}
	switch t := v.(type) {
	case value.Int:
		if t < 0 {
			return -t, nil
		}
		return t, nil
	case value.Float:
		return value.Float(math.Abs(float64(t))), nil
	default:
		return nil, core.Errorf(core.TypeMismatch, token.Position{}, "abs expects a number, not %s", v.Kind())
	}
}

// toInt: value | int(default=0). Unparseable strings yield the default.
func toInt(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	bound, err := bindArgs(args, kwargs, "default")
	if err != nil {
		return nil, err
	}
	def, err := intArg(bound, "default", 0)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case value.Int:
		return t, nil
	case value.Float:
		return value.Int(int64(t)), nil
	case value.Bool:
		if t {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	case value.String, value.Safe:
		s := strings.TrimSpace(v.String())
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return value.Int(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return value.Int(int64(f)), nil
		}
	}
	return value.Int(def), nil
}

// toFloat: value | float(default=0.0)
func toFloat(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	bound, err := bindArgs(args, kwargs, "default")
	if err != nil {
		return nil, err
	}
	def := 0.0
	if d, ok := bound["default"]; ok {
		if def, err = number(d); err != nil {
			return nil, err
		}
	}
	switch t := v.(type) {
	case value.Int:
		return value.Float(t), nil
	case value.Float:
		return t, nil
	case value.String, value.Safe:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64); err == nil {
			return value.Float(f), nil
		}
	}
	return value.Float(def), nil
}

func toString(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, errNoArgs
	}
	if value.IsSafe(v) {
		return v, nil
	}
	return value.String(v.String()), nil
}

// truncate: text | truncate(length=255, end="...")
func truncate(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	bound, err := bindArgs(args, kwargs, "length", "end")
	if err != nil {
		return nil, err
	}
	n, err := intArg(bound, "length", 255)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("length must not be negative")
	}
	end, err := stringArg(bound, "end", "...")
	if err != nil {
		return nil, err
	}

	runes := []rune(v.String())
	if len(runes) <= n {
		return value.String(string(runes)), nil
	}
	return value.String(string(runes[:n]) + end), nil
}

// jsonEncode: value | json_encode(pretty=false)
func jsonEncode(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	bound, err := bindArgs(args, kwargs, "pretty")
	if err != nil {
		return nil, err
	}
	pretty, err := boolArg(bound, "pretty", false)
	if err != nil {
		return nil, err
	}

	var data []byte
	if pretty {
		data, err = json.MarshalIndent(value.ToGo(v), "", "  ")
	} else {
		data, err = json.Marshal(value.ToGo(v))
	}
	if err != nil {
		return nil, err
	}
	return value.String(data), nil
}
