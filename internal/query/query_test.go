package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/firedesk/internal/codec"
	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/store"
	tu "github.com/roach88/firedesk/internal/testutil"
	"github.com/roach88/firedesk/internal/wire"
)

func seedAges(t *testing.T, s store.Store, n int) {
	t.Helper()
	ctx := context.Background()
	for start := 0; start < n; start += store.MaxBatchWrites {
		b := s.NewBatch()
		for i := start; i < n && i < start+store.MaxBatchWrites; i++ {
			b.Create(fmt.Sprintf("people/p%04d", i), map[string]any{"age": int64(i)})
		}
		require.NoError(t, b.Commit(ctx))
	}
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func mustParse(t *testing.T, text string) *Spec {
	t.Helper()
	spec, err := Parse([]byte(text))
	require.NoError(t, err)
	return spec
}

func TestParse(t *testing.T) {
	spec := mustParse(t, `{
		"where": [["age", ">=", 18], ["tags", "in", ["a", "b"]]],
		"orderBy": [["age", "desc"], ["name"], "city"],
		"limit": 10,
		"startAt": [30, "Ann", "Oslo"],
		"endBefore": {"__ref__": "people/bob"}
	}`)

	require.Len(t, spec.Where, 2)
	assert.Equal(t, Filter{Field: "age", Op: store.OpGreaterEqual, Value: wire.Int(18)}, spec.Where[0])
	assert.Equal(t, wire.List{wire.String("a"), wire.String("b")}, spec.Where[1].Value)
	assert.Equal(t, []Order{
		{Field: "age", Direction: store.Desc},
		{Field: "name", Direction: store.Asc},
		{Field: "city", Direction: store.Asc},
	}, spec.OrderBy)
	assert.Equal(t, 10, spec.Limit)
	assert.Equal(t, &Cursor{Values: []wire.Value{wire.Int(30), wire.String("Ann"), wire.String("Oslo")}}, spec.StartAt)
	assert.Equal(t, &Cursor{Ref: "people/bob"}, spec.EndBefore)
	assert.Nil(t, spec.StartAfter)

	// value bounds cannot be aligned with the id ordering a reference adds
	var sv *codec.SchemaViolation
	require.ErrorAs(t, spec.Validate(), &sv)
	assert.Equal(t, "$.startAt", sv.Path)

	spec.EndBefore = nil
	require.NoError(t, spec.Validate())
}

func TestParse_Null(t *testing.T) {
	spec := mustParse(t, `null`)
	assert.Equal(t, &Spec{}, spec)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		path string
	}{
		{"not an object", `[1]`, "$"},
		{"unknown key", `{"select": ["a"]}`, "$.select"},
		{"where not a list", `{"where": {"a": 1}}`, "$.where"},
		{"short triple", `{"where": [["a", "=="]]}`, "$.where[0]"},
		{"numeric field", `{"where": [[1, "==", 1]]}`, "$.where[0][0]"},
		{"numeric operator", `{"where": [["a", 1, 1]]}`, "$.where[0][1]"},
		{"direction type", `{"orderBy": [["a", 1]]}`, "$.orderBy[0][1]"},
		{"fractional limit", `{"limit": 1.5}`, "$.limit"},
		{"string limit", `{"limit": "10"}`, "$.limit"},
		{"cursor scalar", `{"startAt": 3}`, "$.startAt"},
		{"cursor object", `{"startAt": {"id": "x"}}`, "$.startAt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.text))
			var sv *codec.SchemaViolation
			require.ErrorAs(t, err, &sv)
			assert.Equal(t, tt.path, sv.Path)
		})
	}
}

func TestSpec_UnmarshalJSON(t *testing.T) {
	var spec Spec
	require.NoError(t, spec.UnmarshalJSON([]byte(`{"limitToLast": 2, "orderBy": [["a"]]}`)))
	assert.Equal(t, 2, spec.LimitToLast)
}

func TestValidate(t *testing.T) {
	one := []wire.Value{wire.Int(1)}
	tests := []struct {
		name string
		spec Spec
		path string
	}{
		{"bad operator", Spec{Where: []Filter{{Field: "a", Op: "=", Value: wire.Int(1)}}}, "$.where[0][1]"},
		{"empty field", Spec{Where: []Filter{{Op: store.OpEqual, Value: wire.Int(1)}}}, "$.where[0][0]"},
		{"in needs list", Spec{Where: []Filter{{Field: "a", Op: store.OpIn, Value: wire.Int(1)}}}, "$.where[0][2]"},
		{"bad direction", Spec{OrderBy: []Order{{Field: "a", Direction: "up"}}}, "$.orderBy[0][1]"},
		{"negative limit", Spec{Limit: -1}, "$.limit"},
		{"both limits", Spec{Limit: 1, LimitToLast: 1, OrderBy: []Order{{Field: "a", Direction: store.Asc}}}, "$"},
		{"limitToLast unordered", Spec{LimitToLast: 1}, "$.limitToLast"},
		{"empty cursor", Spec{StartAt: &Cursor{}}, "$.startAt"},
		{"mixed cursor", Spec{EndAt: &Cursor{Values: one, Ref: "a/b"}}, "$.endAt"},
		{
			"too many cursor values",
			Spec{OrderBy: []Order{{Field: "a", Direction: store.Asc}}, StartAfter: &Cursor{Values: []wire.Value{wire.Int(1), wire.Int(2)}}},
			"$.startAfter",
		},
		{
			"too few cursor values",
			Spec{OrderBy: []Order{{Field: "a", Direction: store.Asc}, {Field: "b", Direction: store.Asc}}, EndBefore: &Cursor{Values: one}},
			"$.endBefore",
		},
		{"value cursor unordered", Spec{StartAt: &Cursor{Values: one}}, "$.startAt"},
		{
			"value and reference cursors",
			Spec{OrderBy: []Order{{Field: "a", Direction: store.Asc}}, StartAt: &Cursor{Values: one}, EndAt: &Cursor{Ref: "a/b"}},
			"$.startAt",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			var sv *codec.SchemaViolation
			require.ErrorAs(t, err, &sv)
			assert.Equal(t, tt.path, sv.Path)
		})
	}
}

func TestBuild_DecodesValues(t *testing.T) {
	b := NewBuilder(tu.OpenStore(t))
	spec := mustParse(t, `{
		"where": [
			["seen", "<", {"__timestamp__": 1700000000000}],
			["owner", "==", {"__ref__": "users/alice"}]
		],
		"orderBy": [["seen", "desc"]],
		"limitToLast": 3,
		"endAt": [{"__timestamp__": 0}]
	}`)

	q, err := b.Build(context.Background(), "/logs/", spec)
	require.NoError(t, err)

	assert.Equal(t, "logs", q.Collection)
	require.Len(t, q.Filters, 2)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), q.Filters[0].Value)
	assert.Equal(t, codec.Reference{Path: "users/alice"}, q.Filters[1].Value)
	assert.Equal(t, []store.Order{{Field: "seen", Direction: store.Desc}}, q.Orders)
	assert.Equal(t, 3, q.LimitToLast)
	require.NotNil(t, q.EndAt)
	assert.Equal(t, []any{time.UnixMilli(0).UTC()}, q.EndAt.Values)
}

func TestBuild_RejectsDeletionMarker(t *testing.T) {
	b := NewBuilder(tu.OpenStore(t))
	tests := []struct {
		name string
		text string
		path string
	}{
		{"filter value", `{"where": [["a", "==", {"__undefined__": true}]]}`, "$.where[0][2]"},
		{"nested in map", `{"where": [["a", "==", {"x": {"__undefined__": true}}]]}`, "$.where[0][2]"},
		{"in list", `{"where": [["a", "in", [{"__undefined__": true}]]]}`, "$.where[0][2][0]"},
		{"cursor value", `{"orderBy": [["a"]], "startAt": [{"__undefined__": true}]}`, "$.startAt[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(context.Background(), "c", mustParse(t, tt.text))
			var sv *codec.SchemaViolation
			require.ErrorAs(t, err, &sv)
			assert.Equal(t, tt.path, sv.Path)
		})
	}
}

func TestBuild_PathParity(t *testing.T) {
	b := NewBuilder(tu.OpenStore(t))
	_, err := b.Build(context.Background(), "people/alice", nil)
	assert.True(t, paths.IsParityError(err))

	_, err = b.Count(context.Background(), "", nil)
	assert.True(t, paths.IsParityError(err))
}

func TestRun_LimitAndOrder(t *testing.T) {
	s := tu.OpenStore(t)
	seedAges(t, s, 20)
	b := NewBuilder(s)
	ctx := context.Background()

	docs, err := b.Run(ctx, "people", mustParse(t, `{"where": [["age", ">=", 10]], "orderBy": [["age", "desc"]], "limit": 3}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"p0019", "p0018", "p0017"}, ids(docs))
	assert.Equal(t, wire.Int(19), docs[0].Data["age"])
	assert.Equal(t, "people/p0019", docs[0].Path)

	docs, err = b.Run(ctx, "people", mustParse(t, `{"orderBy": [["age"]], "limitToLast": 2}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"p0018", "p0019"}, ids(docs))

	docs, err = b.Run(ctx, "people", mustParse(t, `{"orderBy": [["age"]], "startAfter": [4], "endAt": [7]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"p0005", "p0006", "p0007"}, ids(docs))
}

func TestRun_RefCursor(t *testing.T) {
	s := tu.OpenStore(t)
	ctx := context.Background()
	b := s.NewBatch()
	b.Create("people/a", map[string]any{"age": int64(1)})
	b.Create("people/b", map[string]any{"age": int64(1)})
	b.Create("people/c", map[string]any{"age": int64(1)})
	b.Create("people/d", map[string]any{"age": int64(2)})
	require.NoError(t, b.Commit(ctx))
	qb := NewBuilder(s)

	docs, err := qb.Run(ctx, "people", mustParse(t, `{"orderBy": [["age"]], "startAfter": {"__ref__": "people/b"}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ids(docs), "ties break on document id")

	docs, err = qb.Run(ctx, "people", mustParse(t, `{"startAt": {"__ref__": "people/c"}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ids(docs))

	q, err := qb.Build(ctx, "people", mustParse(t, `{"orderBy": [["age", "desc"]], "endBefore": {"__ref__": "people/d"}}`))
	require.NoError(t, err)
	assert.Equal(t, []store.Order{
		{Field: "age", Direction: store.Desc},
		{Field: store.DocumentID, Direction: store.Desc},
	}, q.Orders)
	assert.Equal(t, []any{int64(2), codec.Reference{Path: "people/d"}}, q.EndBefore.Values)

	q, err = qb.Build(ctx, "people", mustParse(t, `{"startAt": {"__ref__": "people/c"}}`))
	require.NoError(t, err)
	assert.Equal(t, []store.Order{{Field: store.DocumentID, Direction: store.Asc}}, q.Orders)
	assert.Equal(t, []any{codec.Reference{Path: "people/c"}}, q.StartAt.Values)
}

func TestRun_RefCursorOrdersByInequality(t *testing.T) {
	s := tu.OpenStore(t)
	ctx := context.Background()
	b := s.NewBatch()
	b.Create("people/a", map[string]any{"age": int64(3)})
	b.Create("people/b", map[string]any{"age": int64(1)})
	b.Create("people/c", map[string]any{"age": int64(2)})
	b.Create("people/d", map[string]any{"age": int64(2)})
	require.NoError(t, b.Commit(ctx))
	qb := NewBuilder(s)

	spec := mustParse(t, `{"where": [["name", "==", "x"], ["age", ">", 0]], "startAfter": {"__ref__": "people/c"}}`)
	q, err := qb.Build(ctx, "people", spec)
	require.NoError(t, err)
	assert.Equal(t, []store.Order{
		{Field: "age", Direction: store.Asc},
		{Field: store.DocumentID, Direction: store.Asc},
	}, q.Orders)
	assert.Equal(t, []any{int64(2), codec.Reference{Path: "people/c"}}, q.StartAfter.Values)

	docs, err := qb.Run(ctx, "people", mustParse(t, `{"where": [["age", ">", 0]], "startAfter": {"__ref__": "people/c"}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a"}, ids(docs))

	q, err = qb.Build(ctx, "people", mustParse(t, `{"orderBy": [["__name__", "desc"]], "startAt": {"__ref__": "people/c"}, "endAt": [{"__ref__": "people/a"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []store.Order{{Field: store.DocumentID, Direction: store.Desc}}, q.Orders)
	assert.Equal(t, []any{codec.Reference{Path: "people/c"}}, q.StartAt.Values)
	assert.Equal(t, []any{codec.Reference{Path: "people/a"}}, q.EndAt.Values)
}

func TestRun_RefCursorErrors(t *testing.T) {
	s := tu.OpenStore(t)
	ctx := context.Background()
	b := s.NewBatch()
	b.Create("people/a", map[string]any{"name": "a"})
	require.NoError(t, b.Commit(ctx))
	qb := NewBuilder(s)

	_, err := qb.Run(ctx, "people", mustParse(t, `{"startAt": {"__ref__": "people/ghost"}}`))
	assert.True(t, store.IsNotFound(err))

	_, err = qb.Run(ctx, "people", mustParse(t, `{"orderBy": [["age"]], "startAt": {"__ref__": "people/a"}}`))
	var sv *codec.SchemaViolation
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "$.startAt", sv.Path)

	_, err = qb.Run(ctx, "people", mustParse(t, `{"startAt": {"__ref__": "people"}}`))
	assert.True(t, paths.IsParityError(err))
}

func TestCount_IgnoresLimitAndCursors(t *testing.T) {
	s := tu.OpenStore(t)
	seedAges(t, s, 1000)
	fs := tu.NewFaultStore(s)
	b := NewBuilder(fs)
	ctx := context.Background()

	spec := mustParse(t, `{"orderBy": [["age"]], "limit": 10, "startAfter": {"__ref__": "people/p0100"}}`)

	docs, err := b.Run(ctx, "people", spec)
	require.NoError(t, err)
	assert.Len(t, docs, 10)
	assert.Equal(t, "p0101", docs[0].ID)

	n, err := b.Count(ctx, "people", spec)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)

	n, err = b.Count(ctx, "people", mustParse(t, `{"where": [["age", ">=", 900]], "limit": 5}`))
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	assert.Equal(t, []string{"Get", "RunQuery", "Count", "Count"}, fs.Calls())
}

func TestDocument_Flatten(t *testing.T) {
	d := Document{ID: "alice", Path: "people/alice", Data: wire.Map{"age": wire.Int(3)}}
	assert.Equal(t, wire.Map{"age": wire.Int(3), "id": wire.String("alice")}, d.Flatten())

	d.Subcollections = []string{"posts"}
	assert.Equal(t, wire.Map{
		"age":             wire.Int(3),
		"id":              wire.String("alice"),
		"_subcollections": wire.List{wire.String("posts")},
	}, d.Flatten())
}
