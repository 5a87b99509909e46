package sqlite

import (
	"bytes"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/roach88/firedesk/internal/codec"
	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/store"
)

// Type ranks in Firestore's cross-type ordering.
const (
	rankNull = iota
	rankBool
	rankNumber
	rankTimestamp
	rankString
	rankBytes
	rankReference
	rankGeo
	rankArray
	rankMap
)

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case int64, float64, int, int32, float32:
		return rankNumber
	case time.Time:
		return rankTimestamp
	case string:
		return rankString
	case []byte:
		return rankBytes
	case codec.Reference:
		return rankReference
	case codec.GeoPoint:
		return rankGeo
	case []any:
		return rankArray
	case map[string]any:
		return rankMap
	default:
		return rankMap + 1
	}
}

// compareValues orders two native values. Values of different types compare
// by type rank; numbers compare numerically across int64 and float64, with
// NaN below every other number.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch ra {
	case rankNull:
		return 0
	case rankBool:
		return cmpBool(a.(bool), b.(bool))
	case rankNumber:
		return compareNumbers(a, b)
	case rankTimestamp:
		return a.(time.Time).Compare(b.(time.Time))
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBytes:
		return bytes.Compare(a.([]byte), b.([]byte))
	case rankReference:
		return compareReferences(a.(codec.Reference), b.(codec.Reference))
	case rankGeo:
		ga, gb := a.(codec.GeoPoint), b.(codec.GeoPoint)
		if c := compareFloats(ga.Latitude, gb.Latitude); c != 0 {
			return c
		}
		return compareFloats(ga.Longitude, gb.Longitude)
	case rankArray:
		return compareArrays(a.([]any), b.([]any))
	case rankMap:
		return compareMaps(a.(map[string]any), b.(map[string]any))
	default:
		return 0
	}
}

func equalValues(a, b any) bool {
	return typeRank(a) == typeRank(b) && compareValues(a, b) == 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareNumbers(a, b any) int {
	if ia, ok := a.(int64); ok {
		if ib, ok := b.(int64); ok {
			switch {
			case ia < ib:
				return -1
			case ia > ib:
				return 1
			default:
				return 0
			}
		}
	}
	return compareFloats(toFloat(a), toFloat(b))
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return math.NaN()
}

func compareFloats(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareReferences(a, b codec.Reference) int {
	sa := strings.Split(strings.Trim(a.Path, paths.Delimiter), paths.Delimiter)
	sb := strings.Split(strings.Trim(b.Path, paths.Delimiter), paths.Delimiter)
	for i := 0; i < len(sa) && i < len(sb); i++ {
		if c := strings.Compare(sa[i], sb[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(sa), len(sb))
}

func compareArrays(a, b []any) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

func compareMaps(a, b map[string]any) int {
	ka := sortedKeys(a)
	kb := sortedKeys(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if c := strings.Compare(ka[i], kb[i]); c != 0 {
			return c
		}
		if c := compareValues(a[ka[i]], b[kb[i]]); c != 0 {
			return c
		}
	}
	return cmpInt(len(ka), len(kb))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// matches reports whether snap satisfies f. A document missing the field
// never matches.
func matches(snap store.Snapshot, f store.Filter) bool {
	v, ok := snap.Lookup(f.Field)
	if !ok {
		return false
	}

	switch f.Op {
	case store.OpEqual:
		return equalValues(v, f.Value)
	case store.OpNotEqual:
		return v != nil && !equalValues(v, f.Value)
	case store.OpLess, store.OpLessEqual, store.OpGreater, store.OpGreaterEqual:
		if typeRank(v) != typeRank(f.Value) {
			return false
		}
		c := compareValues(v, f.Value)
		switch f.Op {
		case store.OpLess:
			return c < 0
		case store.OpLessEqual:
			return c <= 0
		case store.OpGreater:
			return c > 0
		default:
			return c >= 0
		}
	case store.OpArrayContains:
		arr, ok := v.([]any)
		return ok && containsValue(arr, f.Value)
	case store.OpArrayContainsAny:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, want := range listOf(f.Value) {
			if containsValue(arr, want) {
				return true
			}
		}
		return false
	case store.OpIn:
		return containsValue(listOf(f.Value), v)
	case store.OpNotIn:
		return v != nil && !containsValue(listOf(f.Value), v)
	}
	return false
}

func listOf(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return nil
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if equalValues(item, v) {
			return true
		}
	}
	return false
}

// effectiveOrders returns the orderings the query runs with: the explicit
// ones, a leading implicit ordering on the first inequality field when none
// are given, and a trailing document id ordering.
func effectiveOrders(q *store.Query) []store.Order {
	orders := slices.Clone(q.Orders)
	if len(orders) == 0 {
		for _, f := range q.Filters {
			if f.Op.Inequality() {
				orders = append(orders, store.Order{Field: f.Field, Direction: store.Asc})
				break
			}
		}
	}

	dir := store.Asc
	if n := len(orders); n > 0 {
		dir = orders[n-1].Direction
	}
	for _, o := range orders {
		if o.Field == store.DocumentID {
			return orders
		}
	}
	return append(orders, store.Order{Field: store.DocumentID, Direction: dir})
}

func compareDocs(a, b store.Snapshot, orders []store.Order) int {
	for _, o := range orders {
		va, _ := a.Lookup(o.Field)
		vb, _ := b.Lookup(o.Field)
		c := compareValues(va, vb)
		if o.Direction == store.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// cursorPosition compares snap against a cursor along orders: negative when
// snap sorts before the cursor, zero when it sits on it.
func cursorPosition(snap store.Snapshot, orders []store.Order, cur *store.Cursor, collection string) int {
	for i, want := range cur.Values {
		if i >= len(orders) {
			break
		}
		o := orders[i]
		if o.Field == store.DocumentID {
			want = cursorReference(want, collection)
		}
		have, _ := snap.Lookup(o.Field)
		c := compareValues(have, want)
		if o.Direction == store.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// cursorReference turns a document id cursor value into a reference under
// collection.
func cursorReference(v any, collection string) any {
	switch id := v.(type) {
	case string:
		return codec.Reference{Path: paths.Join(collection, id)}
	case *codec.Reference:
		return *id
	}
	return v
}

// evaluate filters, orders, bounds and limits snaps for q.
func evaluate(q *store.Query, snaps []store.Snapshot) []store.Snapshot {
	out := make([]store.Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		if matchesAll(snap, q.Filters) && hasOrderFields(snap, q.Orders) {
			out = append(out, snap)
		}
	}

	orders := effectiveOrders(q)
	slices.SortStableFunc(out, func(a, b store.Snapshot) int {
		return compareDocs(a, b, orders)
	})

	out = slices.DeleteFunc(out, func(snap store.Snapshot) bool {
		return !withinBounds(snap, q, orders)
	})

	switch {
	case q.Limit > 0 && len(out) > q.Limit:
		out = out[:q.Limit]
	case q.LimitToLast > 0 && len(out) > q.LimitToLast:
		out = out[len(out)-q.LimitToLast:]
	}
	return out
}

func matchesAll(snap store.Snapshot, filters []store.Filter) bool {
	for _, f := range filters {
		if !matches(snap, f) {
			return false
		}
	}
	return true
}

func hasOrderFields(snap store.Snapshot, orders []store.Order) bool {
	for _, o := range orders {
		if _, ok := snap.Lookup(o.Field); !ok {
			return false
		}
	}
	return true
}

func withinBounds(snap store.Snapshot, q *store.Query, orders []store.Order) bool {
	if q.StartAt != nil && cursorPosition(snap, orders, q.StartAt, q.Collection) < 0 {
		return false
	}
	if q.StartAfter != nil && cursorPosition(snap, orders, q.StartAfter, q.Collection) <= 0 {
		return false
	}
	if q.EndAt != nil && cursorPosition(snap, orders, q.EndAt, q.Collection) > 0 {
		return false
	}
	if q.EndBefore != nil && cursorPosition(snap, orders, q.EndBefore, q.Collection) >= 0 {
		return false
	}
	return true
}
