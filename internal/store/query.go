package store

import "fmt"

// DocumentID is the pseudo-field that orders and filters by document path.
const DocumentID = "__name__"

// Operator is a filter comparison.
type Operator string

const (
	OpEqual            Operator = "=="
	OpNotEqual         Operator = "!="
	OpLess             Operator = "<"
	OpLessEqual        Operator = "<="
	OpGreater          Operator = ">"
	OpGreaterEqual     Operator = ">="
	OpArrayContains    Operator = "array-contains"
	OpArrayContainsAny Operator = "array-contains-any"
	OpIn               Operator = "in"
	OpNotIn            Operator = "not-in"
)

var operators = map[Operator]bool{
	OpEqual: true, OpNotEqual: true,
	OpLess: true, OpLessEqual: true, OpGreater: true, OpGreaterEqual: true,
	OpArrayContains: true, OpArrayContainsAny: true,
	OpIn: true, OpNotIn: true,
}

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	return operators[op]
}

// TakesList reports whether the operator's value must be a list.
func (op Operator) TakesList() bool {
	return op == OpIn || op == OpNotIn || op == OpArrayContainsAny
}

// Inequality reports whether the operator is a range or exclusion filter.
// A query with one is implicitly ordered by its first such field.
func (op Operator) Inequality() bool {
	switch op {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpNotEqual, OpNotIn:
		return true
	}
	return false
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Valid reports whether d is asc or desc.
func (d Direction) Valid() bool {
	return d == Asc || d == Desc
}

// Filter is one where-clause with a native value.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Order is one order-by clause.
type Order struct {
	Field     string
	Direction Direction
}

// Cursor is a pagination bound. Values are native and aligned with the
// query's orderings.
type Cursor struct {
	Values []any
}

// Query is a fully resolved query plan. Drivers apply its parts in the
// order filters, orderings, limit, cursors.
type Query struct {
	Collection  string
	Filters     []Filter
	Orders      []Order
	Limit       int
	LimitToLast int
	StartAt     *Cursor
	StartAfter  *Cursor
	EndAt       *Cursor
	EndBefore   *Cursor
}

// FiltersOnly returns a copy of q that keeps the collection and filters and
// drops orderings, limits and cursors.
func (q *Query) FiltersOnly() *Query {
	return &Query{
		Collection: q.Collection,
		Filters:    append([]Filter(nil), q.Filters...),
	}
}

func (q *Query) String() string {
	return fmt.Sprintf("query(%s, filters=%d, orders=%d, limit=%d, limitToLast=%d)",
		q.Collection, len(q.Filters), len(q.Orders), q.Limit, q.LimitToLast)
}
