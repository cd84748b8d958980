package value

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// FromGo converts a Go value into a Value.
//
// Maps with string (or stringable) keys become Objects, slices and arrays
// become Arrays, and structs are flattened to Objects through mapstructure,
// honoring `json` field tags. Pointers are followed; nil becomes None.
func FromGo(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return None{}, nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(t), nil
	case int8:
		return Int(t), nil
	case int16:
		return Int(t), nil
	case int32:
		return Int(t), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(t), nil
	case uint8:
		return Int(t), nil
	case uint16:
		return Int(t), nil
	case uint32:
		return Int(t), nil
	case uint64:
		return Int(t), nil
	case float32:
		return Float(t), nil
	case float64:
		return Float(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Float(f), nil
	case time.Time:
		return String(t.Format(time.RFC3339)), nil
	case time.Duration:
		return String(t.String()), nil
	case []any:
		out := make(Array, len(t))
		for i, item := range t {
			cv, err := FromGo(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(t))
		for k, item := range t {
			cv, err := FromGo(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = cv
		}
		return out, nil
	}

	return fromReflect(reflect.ValueOf(v))
}

// MustFromGo is like FromGo but panics on unsupported input. It is meant for
// literals in tests and examples.
func MustFromGo(v any) Value {
	cv, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return cv
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return None{}, nil
		}
		return FromGo(rv.Elem().Interface())

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Array{}, nil
		}
		out := make(Array, rv.Len())
		for i := range rv.Len() {
			cv, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil

	case reflect.Map:
		out := make(Object, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := mapKey(iter.Key())
			if err != nil {
				return nil, err
			}
			cv, err := FromGo(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = cv
		}
		return out, nil

	case reflect.Struct:
		var m map[string]any
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName: "json",
			Result:  &m,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(rv.Interface()); err != nil {
			return nil, fmt.Errorf("convert %s: %w", rv.Type(), err)
		}
		return FromGo(m)

	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil

	default:
		return nil, fmt.Errorf("unsupported value of type %s", rv.Type())
	}
}

func mapKey(k reflect.Value) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10), nil
	case reflect.Bool:
		return strconv.FormatBool(k.Bool()), nil
	case reflect.Interface:
		return mapKey(k.Elem())
	default:
		return "", fmt.Errorf("unsupported map key type %s", k.Type())
	}
}

// ToGo converts a Value back into plain Go data: map[string]any, []any,
// string, bool, int64, float64 or nil.
func ToGo(v Value) any {
	switch t := v.(type) {
	case nil, Undefined, None:
		return nil
	case Bool:
		return bool(t)
	case Int:
		return int64(t)
	case Float:
		return float64(t)
	case String:
		return string(t)
	case Safe:
		return string(t)
	case Array:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = ToGo(item)
		}
		return out
	case Object:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = ToGo(item)
		}
		return out
	default:
		return v.String()
	}
}
