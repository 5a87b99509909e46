// Package query turns a query descriptor into a store query plan.
//
// A Spec is the caller-facing descriptor: where-clauses, orderings, one
// limiting clause and cursor bounds, with values in wire form. Builder
// validates it, decodes its values through the codec and resolves
// document-reference cursors into a store.Query.
package query

import (
	"fmt"

	"github.com/roach88/firedesk/internal/codec"
	"github.com/roach88/firedesk/internal/store"
	"github.com/roach88/firedesk/internal/wire"
)

// Filter is one where-clause. Value is in wire form.
type Filter struct {
	Field string
	Op    store.Operator
	Value wire.Value
}

// Order is one order-by clause.
type Order struct {
	Field     string
	Direction store.Direction
}

// Cursor is a pagination bound given either as literal values aligned with
// the orderings, or as a reference to a document whose field values at the
// ordering fields form the bound.
type Cursor struct {
	Values []wire.Value
	Ref    string
}

// IsRef reports whether the cursor names a document.
func (c *Cursor) IsRef() bool {
	return c.Ref != ""
}

// Spec is an immutable query descriptor.
type Spec struct {
	Where       []Filter
	OrderBy     []Order
	Limit       int
	LimitToLast int
	StartAt     *Cursor
	StartAfter  *Cursor
	EndAt       *Cursor
	EndBefore   *Cursor
}

// cursors returns the cursor bounds with their JSON names, in plan order.
func (s *Spec) cursors() []namedCursor {
	return []namedCursor{
		{"startAt", s.StartAt},
		{"startAfter", s.StartAfter},
		{"endAt", s.EndAt},
		{"endBefore", s.EndBefore},
	}
}

func (s *Spec) hasRefCursor() bool {
	for _, nc := range s.cursors() {
		if nc.cursor != nil && nc.cursor.IsRef() {
			return true
		}
	}
	return false
}

type namedCursor struct {
	name   string
	cursor *Cursor
}

// Validate checks the descriptor's shape without touching values.
func (s *Spec) Validate() error {
	for i, f := range s.Where {
		at := fmt.Sprintf("$.where[%d]", i)
		if f.Field == "" {
			return &codec.SchemaViolation{Path: at + "[0]", Reason: "empty field"}
		}
		if !f.Op.Valid() {
			return &codec.SchemaViolation{Path: at + "[1]", Reason: fmt.Sprintf("unsupported operator %q", f.Op)}
		}
		if f.Value == nil {
			return &codec.SchemaViolation{Path: at + "[2]", Reason: "missing value"}
		}
		if f.Op.TakesList() {
			if _, ok := f.Value.(wire.List); !ok {
				return &codec.SchemaViolation{
					Path:   at + "[2]",
					Reason: fmt.Sprintf("operator %q needs a list value, got %s", f.Op, wire.KindOf(f.Value)),
				}
			}
		}
	}

	for i, o := range s.OrderBy {
		at := fmt.Sprintf("$.orderBy[%d]", i)
		if o.Field == "" {
			return &codec.SchemaViolation{Path: at + "[0]", Reason: "empty field"}
		}
		if !o.Direction.Valid() {
			return &codec.SchemaViolation{Path: at + "[1]", Reason: fmt.Sprintf("direction must be asc or desc, got %q", o.Direction)}
		}
	}

	switch {
	case s.Limit < 0:
		return &codec.SchemaViolation{Path: "$.limit", Reason: "must not be negative"}
	case s.LimitToLast < 0:
		return &codec.SchemaViolation{Path: "$.limitToLast", Reason: "must not be negative"}
	case s.Limit > 0 && s.LimitToLast > 0:
		return &codec.SchemaViolation{Path: "$", Reason: "limit and limitToLast are mutually exclusive"}
	case s.LimitToLast > 0 && len(s.OrderBy) == 0:
		return &codec.SchemaViolation{Path: "$.limitToLast", Reason: "requires at least one orderBy clause"}
	}

	refCursor := s.hasRefCursor()
	for _, nc := range s.cursors() {
		c := nc.cursor
		if c == nil {
			continue
		}
		at := "$." + nc.name
		switch {
		case c.IsRef() && len(c.Values) > 0:
			return &codec.SchemaViolation{Path: at, Reason: "cursor has both values and a reference"}
		case c.IsRef():
			continue
		case len(c.Values) == 0:
			return &codec.SchemaViolation{Path: at, Reason: "cursor needs values or a reference"}
		case len(s.OrderBy) == 0:
			return &codec.SchemaViolation{Path: at, Reason: "value cursor requires at least one orderBy clause"}
		case len(c.Values) != len(s.OrderBy):
			return &codec.SchemaViolation{
				Path:   at,
				Reason: fmt.Sprintf("cursor has %d values but the query has %d orderings", len(c.Values), len(s.OrderBy)),
			}
		case refCursor && !orderedByID(s.OrderBy):
			return &codec.SchemaViolation{
				Path:   at,
				Reason: "value cursors can only be combined with a reference cursor when the query orders by " + store.DocumentID,
			}
		}
	}
	return nil
}
