package wire

import (
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
)

// Reserved marker keys. Within one Map they are mutually exclusive.
const (
	RefKey       = "__ref__"
	TimestampKey = "__timestamp__"
	GeoKey       = "__geo__"

	// UndefinedKey spells Undefined in the JSON text form only.
	UndefinedKey = "__undefined__"

	// NowLiteral asks the decoder to substitute the current instant.
	NowLiteral = "now"

	LatitudeKey  = "latitude"
	LongitudeKey = "longitude"
)

// Value is a sealed interface over the wire value cases.
// Only Null, Bool, Int, Float, String, List, Map and Undefined implement it.
// Int and Float together form the numeric case; they are kept apart so that
// integers survive a round trip through the store.
type Value interface {
	wireValue()
}

// Null is the JSON null.
type Null struct{}

func (Null) wireValue() {}

// Bool is a boolean leaf.
type Bool bool

func (Bool) wireValue() {}

// Int is an integral number.
type Int int64

func (Int) wireValue() {}

// Float is a non-integral (or explicitly floating point) number.
type Float float64

func (Float) wireValue() {}

// String is a string leaf.
type String string

func (String) wireValue() {}

// List is an ordered sequence of values. Undefined is never a legal element.
type List []Value

func (List) wireValue() {}

// Map is a string-keyed object. Key order is irrelevant; use SortedKeys
// for deterministic iteration.
type Map map[string]Value

func (Map) wireValue() {}

// Undefined is the value-position absence marker. It instructs an update to
// delete the field and is only legal as a map value.
type Undefined struct{}

func (Undefined) wireValue() {}

// Ref builds the reference marker for a document path.
func Ref(path string) Map {
	return Map{RefKey: String(path)}
}

// TimestampMillis builds the timestamp marker for an instant in milliseconds.
func TimestampMillis(ms int64) Map {
	return Map{TimestampKey: Int(ms)}
}

// TimestampNow builds the timestamp marker resolved at decode time.
func TimestampNow() Map {
	return Map{TimestampKey: String(NowLiteral)}
}

// Geo builds the geo-point marker.
func Geo(latitude, longitude float64) Map {
	return Map{GeoKey: Map{
		LatitudeKey:  Float(latitude),
		LongitudeKey: Float(longitude),
	}}
}

// Markers returns the reserved marker keys present in m, in the fixed
// dispatch order ref, timestamp, geo.
func (m Map) Markers() []string {
	var found []string
	for _, k := range []string{RefKey, TimestampKey, GeoKey} {
		if _, ok := m[k]; ok {
			found = append(found, k)
		}
	}
	return found
}

// SortedKeys returns keys ordered by UTF-16 code units (RFC 8785).
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Equal reports whether a and b are structurally equal. Int and Float are
// distinct cases: Int(1) does not equal Float(1).
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case Undefined:
		_, ok := b.(Undefined)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && (av == bv || (math.IsNaN(float64(av)) && math.IsNaN(float64(bv))))
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromAny converts a generic Go tree (as produced by JSON, YAML or CUE
// decoders) into a wire value. Maps spelled {"__undefined__": true} become
// Undefined.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			w, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = w
		}
		return list, nil
	case map[string]any:
		return mapFromAny(val)
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("map key %v is %T, want string", k, k)
			}
			m[ks] = elem
		}
		return mapFromAny(m)
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func mapFromAny(val map[string]any) (Value, error) {
	if isUndefinedSpelling(val) {
		return Undefined{}, nil
	}
	m := make(Map, len(val))
	for k, elem := range val {
		w, err := FromAny(elem)
		if err != nil {
			return nil, fmt.Errorf("[%q]: %w", k, err)
		}
		m[k] = w
	}
	return m, nil
}

func isUndefinedSpelling(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	b, ok := m[UndefinedKey].(bool)
	return ok && b
}
