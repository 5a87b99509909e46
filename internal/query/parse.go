package query

import (
	"fmt"

	"github.com/roach88/firedesk/internal/codec"
	"github.com/roach88/firedesk/internal/store"
	"github.com/roach88/firedesk/internal/wire"
)

// Parse reads a Spec from its JSON form:
//
//	{
//	  "where":   [["age", ">=", 18], ["tags", "array-contains", "x"]],
//	  "orderBy": [["age", "desc"], ["name"]],
//	  "limit":   10,
//	  "startAt": [18]                      // or {"__ref__": "users/alice"}
//	}
func Parse(data []byte) (*Spec, error) {
	v, err := wire.Parse(data)
	if err != nil {
		return nil, err
	}
	return FromWire(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Spec) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// FromWire reads a Spec from a parsed wire value. Null yields an empty
// Spec.
func FromWire(v wire.Value) (*Spec, error) {
	spec := &Spec{}
	if _, ok := v.(wire.Null); ok || v == nil {
		return spec, nil
	}
	m, ok := v.(wire.Map)
	if !ok {
		return nil, &codec.SchemaViolation{Path: "$", Reason: fmt.Sprintf("query must be an object, got %s", wire.KindOf(v))}
	}

	for key, val := range m {
		at := "$." + key
		var err error
		switch key {
		case "where":
			spec.Where, err = parseWhere(val, at)
		case "orderBy":
			spec.OrderBy, err = parseOrderBy(val, at)
		case "limit":
			spec.Limit, err = parseInt(val, at)
		case "limitToLast":
			spec.LimitToLast, err = parseInt(val, at)
		case "startAt":
			spec.StartAt, err = parseCursor(val, at)
		case "startAfter":
			spec.StartAfter, err = parseCursor(val, at)
		case "endAt":
			spec.EndAt, err = parseCursor(val, at)
		case "endBefore":
			spec.EndBefore, err = parseCursor(val, at)
		default:
			err = &codec.SchemaViolation{Path: at, Reason: "unknown query key"}
		}
		if err != nil {
			return nil, err
		}
	}
	return spec, nil
}

func parseWhere(v wire.Value, at string) ([]Filter, error) {
	if _, ok := v.(wire.Null); ok {
		return nil, nil
	}
	list, ok := v.(wire.List)
	if !ok {
		return nil, &codec.SchemaViolation{Path: at, Reason: "where must be a list of [field, op, value] triples"}
	}
	out := make([]Filter, len(list))
	for i, item := range list {
		elemAt := fmt.Sprintf("%s[%d]", at, i)
		triple, ok := item.(wire.List)
		if !ok || len(triple) != 3 {
			return nil, &codec.SchemaViolation{Path: elemAt, Reason: "expected [field, op, value]"}
		}
		field, ok := triple[0].(wire.String)
		if !ok {
			return nil, &codec.SchemaViolation{Path: elemAt + "[0]", Reason: "field must be a string"}
		}
		op, ok := triple[1].(wire.String)
		if !ok {
			return nil, &codec.SchemaViolation{Path: elemAt + "[1]", Reason: "operator must be a string"}
		}
		out[i] = Filter{Field: string(field), Op: store.Operator(op), Value: triple[2]}
	}
	return out, nil
}

func parseOrderBy(v wire.Value, at string) ([]Order, error) {
	if _, ok := v.(wire.Null); ok {
		return nil, nil
	}
	list, ok := v.(wire.List)
	if !ok {
		return nil, &codec.SchemaViolation{Path: at, Reason: "orderBy must be a list of [field, direction] pairs"}
	}
	out := make([]Order, len(list))
	for i, item := range list {
		elemAt := fmt.Sprintf("%s[%d]", at, i)
		switch x := item.(type) {
		case wire.String:
			out[i] = Order{Field: string(x), Direction: store.Asc}
		case wire.List:
			if len(x) < 1 || len(x) > 2 {
				return nil, &codec.SchemaViolation{Path: elemAt, Reason: "expected [field] or [field, direction]"}
			}
			field, ok := x[0].(wire.String)
			if !ok {
				return nil, &codec.SchemaViolation{Path: elemAt + "[0]", Reason: "field must be a string"}
			}
			out[i] = Order{Field: string(field), Direction: store.Asc}
			if len(x) == 2 {
				dir, ok := x[1].(wire.String)
				if !ok {
					return nil, &codec.SchemaViolation{Path: elemAt + "[1]", Reason: "direction must be a string"}
				}
				out[i].Direction = store.Direction(dir)
			}
		default:
			return nil, &codec.SchemaViolation{Path: elemAt, Reason: "expected [field, direction]"}
		}
	}
	return out, nil
}

func parseInt(v wire.Value, at string) (int, error) {
	switch n := v.(type) {
	case wire.Null:
		return 0, nil
	case wire.Int:
		return int(n), nil
	case wire.Float:
		if float64(n) == float64(int64(n)) {
			return int(n), nil
		}
	}
	return 0, &codec.SchemaViolation{Path: at, Reason: fmt.Sprintf("must be an integer, got %s", wire.KindOf(v))}
}

func parseCursor(v wire.Value, at string) (*Cursor, error) {
	switch x := v.(type) {
	case wire.Null:
		return nil, nil
	case wire.List:
		return &Cursor{Values: x}, nil
	case wire.Map:
		ref, ok := x[wire.RefKey].(wire.String)
		if !ok || len(x) != 1 {
			return nil, &codec.SchemaViolation{Path: at, Reason: "cursor object must be {\"__ref__\": \"<document path>\"}"}
		}
		return &Cursor{Ref: string(ref)}, nil
	default:
		return nil, &codec.SchemaViolation{Path: at, Reason: fmt.Sprintf("cursor must be a list or a reference, got %s", wire.KindOf(v))}
	}
}
