package codec

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/wire"
)

// Clock returns the instant substituted for the "now" timestamp literal.
type Clock func() time.Time

// Codec converts between wire and native values. The zero value is not
// usable; construct with New. A Codec is safe for concurrent use.
type Codec struct {
	now Clock
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the clock used to resolve "now" timestamps.
func WithClock(now Clock) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// New creates a Codec reading the wall clock unless WithClock is given.
func New(opts ...Option) *Codec {
	c := &Codec{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCodec = New()

// Decode converts w using a wall-clock Codec.
func Decode(w wire.Value) (any, error) {
	return defaultCodec.Decode(w)
}

// Encode converts v using a wall-clock Codec.
func Encode(v any) (wire.Value, error) {
	return defaultCodec.Encode(v)
}

// deleteRule decides where the Undefined marker may appear.
type deleteRule int

const (
	deleteAllowed deleteRule = iota
	deleteInList
	deleteInCreate
)

func (r deleteRule) reason() string {
	switch r {
	case deleteInList:
		return "field deletion marker is not allowed inside a list"
	case deleteInCreate:
		return "field deletion marker is only allowed in updates"
	default:
		return ""
	}
}

// Decode converts a wire value to its native form. The result of decoding a
// "now" timestamp depends on the clock and is not repeatable.
func (c *Codec) Decode(w wire.Value) (any, error) {
	return c.decode(w, "$", deleteAllowed)
}

// DecodeData converts a document body for a create or replace. Unlike
// Decode it rejects the deletion marker anywhere in the tree.
func (c *Codec) DecodeData(m wire.Map) (map[string]any, error) {
	v, err := c.decode(m, "$", deleteInCreate)
	if err != nil {
		return nil, err
	}
	data, ok := v.(map[string]any)
	if !ok {
		return nil, violation("$", "document body must be a plain map, got %T", v)
	}
	return data, nil
}

func (c *Codec) decode(w wire.Value, at string, rule deleteRule) (any, error) {
	switch v := w.(type) {
	case nil:
		return nil, violation(at, "missing value")
	case wire.Undefined:
		if rule != deleteAllowed {
			return nil, violation(at, "%s", rule.reason())
		}
		return Delete, nil
	case wire.Null:
		return nil, nil
	case wire.Bool:
		return bool(v), nil
	case wire.Int:
		return int64(v), nil
	case wire.Float:
		return float64(v), nil
	case wire.String:
		return string(v), nil
	case wire.List:
		if rule == deleteAllowed {
			rule = deleteInList
		}
		out := make([]any, len(v))
		for i, elem := range v {
			n, err := c.decode(elem, fmt.Sprintf("%s[%d]", at, i), rule)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case wire.Map:
		return c.decodeMap(v, at, rule)
	default:
		return nil, violation(at, "unknown wire value %T", w)
	}
}

func (c *Codec) decodeMap(m wire.Map, at string, rule deleteRule) (any, error) {
	markers := m.Markers()
	switch {
	case len(markers) > 1:
		return nil, violation(at, "ambiguous marker object: keys %s are mutually exclusive", strings.Join(markers, ", "))
	case len(markers) == 1 && len(m) != 1:
		return nil, violation(at, "marker key %q cannot be combined with other keys", markers[0])
	case len(markers) == 1:
		key := markers[0]
		inner := fieldPath(at, key)
		switch key {
		case wire.RefKey:
			return decodeRef(m[key], inner)
		case wire.TimestampKey:
			return c.decodeTimestamp(m[key], inner)
		default:
			return decodeGeo(m[key], inner)
		}
	}

	out := make(map[string]any, len(m))
	for k, elem := range m {
		n, err := c.decode(elem, fieldPath(at, k), rule)
		if err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, nil
}

func decodeRef(w wire.Value, at string) (any, error) {
	s, ok := w.(wire.String)
	if !ok {
		return nil, violation(at, "reference must be a string path, got %s", wire.KindOf(w))
	}
	p, err := paths.RequireDocument(string(s))
	if err != nil {
		return nil, violation(at, "reference %v", err)
	}
	return Reference{Path: p}, nil
}

func (c *Codec) decodeTimestamp(w wire.Value, at string) (any, error) {
	var ms float64
	switch v := w.(type) {
	case wire.Int:
		n := int64(v)
		if n < minTimestampMicros/1000 || n > maxTimestampMicros/1000 {
			return nil, violation(at, "timestamp out of range (years 1 to 9999)")
		}
		return time.UnixMilli(n).UTC(), nil
	case wire.Float:
		ms = float64(v)
	case wire.String:
		s := strings.TrimSpace(string(v))
		if s == wire.NowLiteral || s == "$"+wire.NowLiteral {
			return c.now().UTC().Truncate(time.Microsecond), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, violation(at, "timestamp must be milliseconds or %q, got %q", wire.NowLiteral, s)
		}
		ms = f
	default:
		return nil, violation(at, "timestamp must be a number of milliseconds, got %s", wire.KindOf(w))
	}
	micros := math.Round(ms * 1000)
	if math.IsNaN(micros) || micros < float64(minTimestampMicros) || micros > float64(maxTimestampMicros) {
		return nil, violation(at, "timestamp out of range (years 1 to 9999)")
	}
	return time.UnixMicro(int64(micros)).UTC(), nil
}

func decodeGeo(w wire.Value, at string) (any, error) {
	m, ok := w.(wire.Map)
	if !ok {
		return nil, violation(at, "geo point must be an object with latitude and longitude, got %s", wire.KindOf(w))
	}
	if len(m) != 2 {
		return nil, violation(at, "geo point must have exactly latitude and longitude")
	}
	lat, err := number(m[wire.LatitudeKey], fieldPath(at, wire.LatitudeKey))
	if err != nil {
		return nil, err
	}
	lng, err := number(m[wire.LongitudeKey], fieldPath(at, wire.LongitudeKey))
	if err != nil {
		return nil, err
	}
	if math.Abs(lat) > maxLatitude {
		return nil, violation(fieldPath(at, wire.LatitudeKey), "latitude %v outside [-90, 90]", lat)
	}
	if math.Abs(lng) > maxLongitude {
		return nil, violation(fieldPath(at, wire.LongitudeKey), "longitude %v outside [-180, 180]", lng)
	}
	return GeoPoint{Latitude: lat, Longitude: lng}, nil
}

func number(w wire.Value, at string) (float64, error) {
	switch v := w.(type) {
	case wire.Int:
		return float64(v), nil
	case wire.Float:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return 0, violation(at, "must be finite")
		}
		return float64(v), nil
	case nil:
		return 0, violation(at, "missing")
	default:
		return 0, violation(at, "must be a number, got %s", wire.KindOf(w))
	}
}

// Encode converts a native value to its wire form. It accepts every value a
// store driver returns; the deletion tombstone and unknown types are errors.
func (c *Codec) Encode(v any) (wire.Value, error) {
	return encode(v, "$")
}

// EncodeData converts a document body read from a store.
func (c *Codec) EncodeData(data map[string]any) (wire.Map, error) {
	out := make(wire.Map, len(data))
	for k, v := range data {
		w, err := encode(v, fieldPath("$", k))
		if err != nil {
			return nil, err
		}
		out[k] = w
	}
	return out, nil
}

func encode(v any, at string) (wire.Value, error) {
	switch val := v.(type) {
	case nil:
		return wire.Null{}, nil
	case bool:
		return wire.Bool(val), nil
	case string:
		return wire.String(val), nil
	case int:
		return wire.Int(val), nil
	case int8:
		return wire.Int(val), nil
	case int16:
		return wire.Int(val), nil
	case int32:
		return wire.Int(val), nil
	case int64:
		return wire.Int(val), nil
	case uint8:
		return wire.Int(val), nil
	case uint16:
		return wire.Int(val), nil
	case uint32:
		return wire.Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("encode %s: integer %d overflows int64", at, val)
		}
		return wire.Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("encode %s: integer %d overflows int64", at, val)
		}
		return wire.Int(val), nil
	case float32:
		return wire.Float(val), nil
	case float64:
		return wire.Float(val), nil
	case []byte:
		return wire.String(base64.StdEncoding.EncodeToString(val)), nil
	case Reference:
		return wire.Ref(val.Path), nil
	case *Reference:
		return wire.Ref(val.Path), nil
	case time.Time:
		return encodeTimestamp(val), nil
	case *time.Time:
		return encodeTimestamp(*val), nil
	case GeoPoint:
		return wire.Geo(val.Latitude, val.Longitude), nil
	case *GeoPoint:
		return wire.Geo(val.Latitude, val.Longitude), nil
	case Tombstone:
		return nil, fmt.Errorf("encode %s: the deletion tombstone has no wire form", at)
	case []any:
		out := make(wire.List, len(val))
		for i, elem := range val {
			w, err := encode(elem, fmt.Sprintf("%s[%d]", at, i))
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	case map[string]any:
		out := make(wire.Map, len(val))
		for k, elem := range val {
			w, err := encode(elem, fieldPath(at, k))
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	default:
		return nil, fmt.Errorf("encode %s: unsupported native type %T", at, v)
	}
}

// encodeTimestamp emits whole milliseconds as Int and keeps any
// sub-millisecond part (to the microsecond) as a Float.
func encodeTimestamp(t time.Time) wire.Value {
	micros := t.UnixMicro()
	if micros%1000 == 0 {
		return wire.Map{wire.TimestampKey: wire.Int(micros / 1000)}
	}
	return wire.Map{wire.TimestampKey: wire.Float(float64(micros) / 1000)}
}

func fieldPath(parent, key string) string {
	if isIdent(key) {
		return parent + "." + key
	}
	return fmt.Sprintf("%s[%q]", parent, key)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
