package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/firedesk/internal/codec"
	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/store"
	"github.com/roach88/firedesk/internal/wire"
)

// Builder turns Specs into store query plans and runs them.
type Builder struct {
	store  store.Store
	codec  *codec.Codec
	logger *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithCodec sets the codec used to decode filter and cursor values.
func WithCodec(c *codec.Codec) Option {
	return func(b *Builder) { b.codec = c }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a Builder over s. Reference cursors are resolved
// against s.
func NewBuilder(s store.Store, opts ...Option) *Builder {
	b := &Builder{
		store:  s,
		codec:  codec.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates spec and returns the plan for collectionPath. Clauses
// are applied in a fixed order: filters, orderings, the limiting clause,
// then cursors. A nil spec selects the whole collection.
//
// A reference cursor is replaced by the referenced document's values at
// every plan ordering. Unless the spec already orders by document id, the
// plan gains a trailing document-id ordering so the bound is exact; a spec
// with no orderings is first ordered by its first inequality field, if any.
func (b *Builder) Build(ctx context.Context, collectionPath string, spec *Spec) (*store.Query, error) {
	collection, err := paths.RequireCollection(collectionPath)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		spec = &Spec{}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	q := &store.Query{Collection: collection}
	if q.Filters, err = b.filters(spec); err != nil {
		return nil, err
	}
	q.Orders = planOrders(spec)
	q.Limit = spec.Limit
	q.LimitToLast = spec.LimitToLast

	bounds := []**store.Cursor{&q.StartAt, &q.StartAfter, &q.EndAt, &q.EndBefore}
	for i, nc := range spec.cursors() {
		if nc.cursor == nil {
			continue
		}
		c, err := b.cursor(ctx, "$."+nc.name, nc.cursor, q.Orders)
		if err != nil {
			return nil, err
		}
		*bounds[i] = c
	}

	b.logger.DebugContext(ctx, "query planned", "query", q.String())
	return q, nil
}

// planOrders returns the spec's orderings, extended to end on document id
// when a reference cursor needs an exact bound.
func planOrders(spec *Spec) []store.Order {
	var orders []store.Order
	for _, o := range spec.OrderBy {
		orders = append(orders, store.Order{Field: o.Field, Direction: o.Direction})
	}
	if !spec.hasRefCursor() || orderedByID(spec.OrderBy) {
		return orders
	}
	if len(orders) == 0 {
		for _, f := range spec.Where {
			if f.Op.Inequality() {
				orders = append(orders, store.Order{Field: f.Field, Direction: store.Asc})
				break
			}
		}
	}
	dir := store.Asc
	if len(orders) > 0 {
		dir = orders[len(orders)-1].Direction
	}
	return append(orders, store.Order{Field: store.DocumentID, Direction: dir})
}

func (b *Builder) filters(spec *Spec) ([]store.Filter, error) {
	out := make([]store.Filter, 0, len(spec.Where))
	for i, f := range spec.Where {
		at := fmt.Sprintf("$.where[%d][2]", i)
		v, err := b.value(f.Value, at)
		if err != nil {
			return nil, err
		}
		out = append(out, store.Filter{Field: f.Field, Op: f.Op, Value: v})
	}
	return out, nil
}

func (b *Builder) cursor(ctx context.Context, at string, c *Cursor, orders []store.Order) (*store.Cursor, error) {
	if !c.IsRef() {
		values := make([]any, len(c.Values))
		for i, w := range c.Values {
			v, err := b.value(w, fmt.Sprintf("%s[%d]", at, i))
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return &store.Cursor{Values: values}, nil
	}

	doc, err := paths.RequireDocument(c.Ref)
	if err != nil {
		return nil, err
	}
	snap, err := b.store.Get(ctx, doc)
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, store.NewProviderError("cursor", doc, store.CodeNotFound, store.ErrNotFound)
	}

	values := make([]any, 0, len(orders))
	for _, o := range orders {
		v, ok := snap.Lookup(o.Field)
		if !ok {
			return nil, &codec.SchemaViolation{
				Path:   at,
				Reason: fmt.Sprintf("cursor document %s has no value for ordering field %q", doc, o.Field),
			}
		}
		values = append(values, v)
	}
	return &store.Cursor{Values: values}, nil
}

func orderedByID(orders []Order) bool {
	for _, o := range orders {
		if o.Field == store.DocumentID {
			return true
		}
	}
	return false
}

// value decodes a filter or cursor operand. The deletion marker is not a
// comparable value.
func (b *Builder) value(w wire.Value, at string) (any, error) {
	v, err := b.codec.Decode(w)
	if err != nil {
		return nil, reroot(err, at)
	}
	if hasTombstone(v) {
		return nil, &codec.SchemaViolation{Path: at, Reason: "field deletion marker is not a comparable value"}
	}
	return v, nil
}

// reroot moves a schema violation from a standalone value to at.
func reroot(err error, at string) error {
	sv, ok := err.(*codec.SchemaViolation)
	if !ok {
		return err
	}
	return &codec.SchemaViolation{Path: at + strings.TrimPrefix(sv.Path, "$"), Reason: sv.Reason}
}

func hasTombstone(v any) bool {
	switch x := v.(type) {
	case codec.Tombstone:
		return true
	case map[string]any:
		for _, elem := range x {
			if hasTombstone(elem) {
				return true
			}
		}
	case []any:
		for _, elem := range x {
			if hasTombstone(elem) {
				return true
			}
		}
	}
	return false
}

// Count returns the number of documents matching spec's filters. Orderings,
// limits and cursors are ignored, so the count is the size of the whole
// filtered result set.
func (b *Builder) Count(ctx context.Context, collectionPath string, spec *Spec) (int64, error) {
	collection, err := paths.RequireCollection(collectionPath)
	if err != nil {
		return 0, err
	}
	if spec == nil {
		spec = &Spec{}
	}
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	filters, err := b.filters(spec)
	if err != nil {
		return 0, err
	}
	q := &store.Query{Collection: collection, Filters: filters}
	b.logger.DebugContext(ctx, "counting", "query", q.String())
	return b.store.Count(ctx, q)
}

// Run builds and executes spec, returning the matching documents in query
// order, encoded to wire form.
func (b *Builder) Run(ctx context.Context, collectionPath string, spec *Spec) ([]Document, error) {
	q, err := b.Build(ctx, collectionPath, spec)
	if err != nil {
		return nil, err
	}
	snaps, err := b.store.RunQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	return b.Documents(snaps)
}

// Documents encodes snapshots to wire form.
func (b *Builder) Documents(snaps []store.Snapshot) ([]Document, error) {
	out := make([]Document, 0, len(snaps))
	for _, s := range snaps {
		d, err := NewDocument(b.codec, s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
