package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"golang.org/x/text/unicode/norm"
)

// Parse decodes JSON text into a wire value. Numbers without a fraction or
// exponent become Int, all others Float.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse wire value: %w", err)
	}
	var trailing any
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse wire value: unexpected data after top-level value")
	}
	return fromDecoded(raw)
}

// ParseMap decodes JSON text that must hold an object.
func ParseMap(data []byte) (Map, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(Map)
	if !ok {
		return nil, fmt.Errorf("parse wire value: expected object, got %s", KindOf(v))
	}
	return m, nil
}

func fromDecoded(v any) (Value, error) {
	switch val := v.(type) {
	case json.Number:
		return numberValue(string(val))
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			w, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = w
		}
		return list, nil
	case map[string]any:
		if isUndefinedSpelling(val) {
			return Undefined{}, nil
		}
		m := make(Map, len(val))
		for k, elem := range val {
			w, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			m[k] = w
		}
		return m, nil
	default:
		return FromAny(val)
	}
}

func numberValue(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return Float(f), nil
}

// KindOf names the case of v for error messages.
func KindOf(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case List:
		return "list"
	case Map:
		return "map"
	case Undefined:
		return "undefined"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Marshal produces deterministic JSON for v: keys sorted by UTF-16 code
// units, no HTML escaping. Whole floats keep a ".0" suffix so they parse
// back as Float. Strings are written byte-for-byte.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalCanonical is Marshal with every string and key NFC-normalized, so
// equal documents produce identical bytes regardless of how their text was
// composed. It is lossy for non-NFC input; use it for comparison, not storage.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalIndent is Marshal followed by indentation, for human output.
func MarshalIndent(v Value, prefix, indent string) ([]byte, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, prefix, indent); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value, nfc bool) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("cannot marshal nil wire value")
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		s, err := formatFloat(float64(val))
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case String:
		writeString(buf, string(val), nfc)
	case Undefined:
		buf.WriteString(`{"` + UndefinedKey + `":true}`)
	case List:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem, nfc); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Map:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k, nfc)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k], nfc); err != nil {
				return fmt.Errorf("[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown wire value type: %T", v)
	}
	return nil
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("cannot marshal non-finite float %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

// writeString escapes only quote, backslash and control characters.
func writeString(buf *bytes.Buffer, s string, nfc bool) {
	if nfc {
		s = norm.NFC.String(s)
	}
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r < 0x20:
			fmt.Fprintf(buf, `\u%04x`, r)
		case r == utf8.RuneError && size == 1:
			// invalid byte
			buf.WriteString("\ufffd")
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}

// MarshalJSON implementations let wire values sit inside tagged structs.

func (v Null) MarshalJSON() ([]byte, error)      { return Marshal(v) }
func (v Bool) MarshalJSON() ([]byte, error)      { return Marshal(v) }
func (v Int) MarshalJSON() ([]byte, error)       { return Marshal(v) }
func (v Float) MarshalJSON() ([]byte, error)     { return Marshal(v) }
func (v String) MarshalJSON() ([]byte, error)    { return Marshal(v) }
func (v Undefined) MarshalJSON() ([]byte, error) { return Marshal(v) }
func (v List) MarshalJSON() ([]byte, error)      { return Marshal(v) }
func (v Map) MarshalJSON() ([]byte, error)       { return Marshal(v) }

// UnmarshalJSON implements json.Unmarshaler for Map.
func (m *Map) UnmarshalJSON(data []byte) error {
	parsed, err := ParseMap(data)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for List.
func (l *List) UnmarshalJSON(data []byte) error {
	v, err := Parse(data)
	if err != nil {
		return err
	}
	list, ok := v.(List)
	if !ok {
		return fmt.Errorf("parse wire value: expected array, got %s", KindOf(v))
	}
	*l = list
	return nil
}
