// Package document defines the transport-safe value model used for tool
// arguments and results. A Value is a closed variant: Null, Bool, Int,
// Float, String, Array or *Document. Documents keep their field order so a
// payload round-trips through JSON and the store without reordering.
package document

import (
	"fmt"
	"math"
	"sort"
)

// Value is one of Null, Bool, Int, Float, String, Array or *Document.
type Value interface {
	isValue()
}

// Null is the JSON null value.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Int is an integral number.
type Int int64

// Float is a non-integral number.
type Float float64

// String is a UTF-8 string.
type String string

// Array is an ordered sequence of values.
type Array []Value

func (Null) isValue()      {}
func (Bool) isValue()      {}
func (Int) isValue()       {}
func (Float) isValue()     {}
func (String) isValue()    {}
func (Array) isValue()     {}
func (*Document) isValue() {}

// int64 bounds expressed as float64; 2^63 itself is not representable as int64.
const (
	minIntFloat = -9223372036854775808.0
	maxIntFloat = 9223372036854775808.0
)

// FromAny converts a value produced by encoding/json (or built by hand from
// the same types) into a Value. Integral floats within the int64 range
// become Int.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(t), nil
	case int32:
		return Int(t), nil
	case int64:
		return Int(t), nil
	case float32:
		return numberFromFloat(float64(t)), nil
	case float64:
		return numberFromFloat(t), nil
	case []any:
		arr := make(Array, 0, len(t))
		for i, item := range t {
			val, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr = append(arr, val)
		}
		return arr, nil
	case map[string]any:
		return FromMap(t)
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// FromMap converts a decoded JSON object into a Document. Go maps carry no
// order, so keys are sorted to keep the result deterministic.
func FromMap(m map[string]any) (*Document, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := &Document{fields: make([]Field, 0, len(keys))}
	for _, k := range keys {
		val, err := FromAny(m[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		doc.fields = append(doc.fields, Field{Key: k, Value: val})
	}
	return doc, nil
}

// nonFiniteName returns the string a non-finite double is rendered as:
// "Infinity", "-Infinity" or "NaN". ok is false for finite values.
func nonFiniteName(f float64) (name string, ok bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", true
	case math.IsInf(f, 1):
		return "Infinity", true
	case math.IsInf(f, -1):
		return "-Infinity", true
	}
	return "", false
}

// fromDouble keeps finite doubles as Float. JSON has no literal for the
// others, so they leave the store as strings.
func fromDouble(f float64) Value {
	if name, ok := nonFiniteName(f); ok {
		return String(name)
	}
	return Float(f)
}

func numberFromFloat(f float64) Value {
	if f == math.Trunc(f) && f >= minIntFloat && f < maxIntFloat {
		return Int(int64(f))
	}
	return Float(f)
}

// KindName returns a short description of the JSON shape of v, used in
// validation messages.
func KindName(v any) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case bool, Bool:
		return "boolean"
	case string, String:
		return "string"
	case int, int32, int64, float32, float64, Int, Float:
		return "number"
	case []any, Array:
		return "array"
	case map[string]any, *Document:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
