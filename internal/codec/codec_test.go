package codec

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/firedesk/internal/wire"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)

func newTestCodec() *Codec {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func TestDecode_Primitives(t *testing.T) {
	c := newTestCodec()

	tests := []struct {
		name string
		in   wire.Value
		want any
	}{
		{"null", wire.Null{}, nil},
		{"bool", wire.Bool(true), true},
		{"int", wire.Int(-7), int64(-7)},
		{"float", wire.Float(2.5), 2.5},
		{"string", wire.String("hi"), "hi"},
		{"empty list", wire.List{}, []any{}},
		{"empty map", wire.Map{}, map[string]any{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Decode(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode_Sentinels(t *testing.T) {
	c := newTestCodec()

	got, err := c.Decode(wire.Ref("/users/alice/"))
	require.NoError(t, err)
	assert.Equal(t, Reference{Path: "users/alice"}, got)
	assert.Equal(t, "alice", got.(Reference).ID())

	got, err = c.Decode(wire.TimestampMillis(1700000000123))
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000000123).UTC(), got)

	got, err = c.Decode(wire.Map{wire.TimestampKey: wire.Float(1.5)})
	require.NoError(t, err)
	assert.Equal(t, time.UnixMicro(1500).UTC(), got)

	got, err = c.Decode(wire.Geo(1, 2))
	require.NoError(t, err)
	assert.Equal(t, GeoPoint{Latitude: 1, Longitude: 2}, got)

	got, err = c.Decode(wire.Map{wire.GeoKey: wire.Map{"latitude": wire.Int(-90), "longitude": wire.Int(180)}})
	require.NoError(t, err)
	assert.Equal(t, GeoPoint{Latitude: -90, Longitude: 180}, got)
}

func TestDecode_TimestampNow(t *testing.T) {
	c := newTestCodec()
	want := fixedNow.Truncate(time.Microsecond)

	for _, literal := range []string{"now", "$now"} {
		got, err := c.Decode(wire.Map{wire.TimestampKey: wire.String(literal)})
		require.NoError(t, err, literal)
		assert.Equal(t, want, got, literal)
	}
}

func TestDecode_TimestampNumericString(t *testing.T) {
	got, err := newTestCodec().Decode(wire.Map{wire.TimestampKey: wire.String("1000")})
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1000).UTC(), got)
}

func TestDecode_AmbiguousMarkersRejected(t *testing.T) {
	c := newTestCodec()

	_, err := c.Decode(wire.Map{
		wire.RefKey:       wire.String("a/b"),
		wire.TimestampKey: wire.Int(1),
	})
	require.Error(t, err)
	assert.True(t, IsSchemaViolation(err))

	var sv *SchemaViolation
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "$", sv.Path)
	assert.Contains(t, sv.Reason, "__ref__, __timestamp__")
}

func TestDecode_MalformedSentinels(t *testing.T) {
	c := newTestCodec()

	tests := []struct {
		name string
		in   wire.Value
		path string
	}{
		{"marker with extra key", wire.Map{wire.RefKey: wire.String("a/b"), "x": wire.Int(1)}, "$"},
		{"ref not string", wire.Map{wire.RefKey: wire.Int(1)}, "$.__ref__"},
		{"ref to collection", wire.Ref("users"), "$.__ref__"},
		{"timestamp bool", wire.Map{wire.TimestampKey: wire.Bool(true)}, "$.__timestamp__"},
		{"timestamp garbage string", wire.Map{wire.TimestampKey: wire.String("yesterday")}, "$.__timestamp__"},
		{"timestamp out of range", wire.Map{wire.TimestampKey: wire.Float(1e300)}, "$.__timestamp__"},
		{"geo not map", wire.Map{wire.GeoKey: wire.List{wire.Int(1), wire.Int(2)}}, "$.__geo__"},
		{"geo missing longitude", wire.Map{wire.GeoKey: wire.Map{"latitude": wire.Int(1), "lat": wire.Int(2)}}, "$.__geo__.longitude"},
		{"geo string latitude", wire.Map{wire.GeoKey: wire.Map{"latitude": wire.String("1"), "longitude": wire.Int(2)}}, "$.__geo__.latitude"},
		{"geo extra key", wire.Map{wire.GeoKey: wire.Map{"latitude": wire.Int(1), "longitude": wire.Int(2), "alt": wire.Int(3)}}, "$.__geo__"},
		{"geo latitude range", wire.Geo(91, 0), "$.__geo__.latitude"},
		{"nested", wire.Map{"a": wire.List{wire.Int(1), wire.Map{wire.RefKey: wire.Null{}}}}, "$.a[1].__ref__"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Decode(tc.in)
			var sv *SchemaViolation
			require.ErrorAs(t, err, &sv)
			assert.Equal(t, tc.path, sv.Path)
		})
	}
}

func TestDecode_DeletionMarker(t *testing.T) {
	c := newTestCodec()

	got, err := c.Decode(wire.Map{"f": wire.Undefined{}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"f": Delete}, got)

	got, err = c.Decode(wire.Undefined{})
	require.NoError(t, err)
	assert.Equal(t, Delete, got)

	_, err = c.Decode(wire.List{wire.Undefined{}})
	var sv *SchemaViolation
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "$[0]", sv.Path)

	_, err = c.Decode(wire.Map{"a": wire.List{wire.Map{"b": wire.Undefined{}}}})
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "$.a[0].b", sv.Path)
}

func TestDecodeData_RejectsDeletion(t *testing.T) {
	c := newTestCodec()

	data, err := c.DecodeData(wire.Map{"name": wire.String("x"), "when": wire.TimestampMillis(0)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "x", "when": time.UnixMilli(0).UTC()}, data)

	_, err = c.DecodeData(wire.Map{"nested": wire.Map{"gone": wire.Undefined{}}})
	var sv *SchemaViolation
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "$.nested.gone", sv.Path)

	_, err = c.DecodeData(wire.Ref("a/b"))
	assert.True(t, IsSchemaViolation(err))
}

func TestDecode_OddKeysUseBracketPath(t *testing.T) {
	_, err := newTestCodec().Decode(wire.Map{"first name": wire.Map{wire.GeoKey: wire.Null{}}})
	var sv *SchemaViolation
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, `$["first name"].__geo__`, sv.Path)
}

func TestEncode_Sentinels(t *testing.T) {
	c := newTestCodec()

	got, err := c.Encode(Reference{Path: "users/alice"})
	require.NoError(t, err)
	assert.Equal(t, wire.Ref("users/alice"), got)

	got, err = c.Encode(time.UnixMilli(1700000000123))
	require.NoError(t, err)
	assert.Equal(t, wire.TimestampMillis(1700000000123), got)

	got, err = c.Encode(time.UnixMicro(1700000000123456))
	require.NoError(t, err)
	assert.Equal(t, wire.Map{wire.TimestampKey: wire.Float(1700000000123.456)}, got)

	got, err = c.Encode(&GeoPoint{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Equal(t, wire.Geo(1, 2), got)

	got, err = c.Encode([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, wire.String("aGk="), got)
}

func TestEncode_Errors(t *testing.T) {
	c := newTestCodec()

	_, err := c.Encode(Delete)
	assert.Error(t, err)

	_, err = c.Encode(map[string]any{"a": []any{struct{}{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$.a[0]")

	_, err = c.Encode(uint64(1 << 63))
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	c := newTestCodec()

	natives := []any{
		nil,
		true,
		int64(42),
		3.25,
		"text",
		Reference{Path: "users/alice/posts/p1"},
		time.UnixMilli(-86400000).UTC(),
		time.UnixMicro(1700000000123456).UTC(),
		GeoPoint{Latitude: -33.8688, Longitude: 151.2093},
		[]any{int64(1), "two", []any{false}},
		map[string]any{
			"owner":   Reference{Path: "users/bob"},
			"created": time.UnixMilli(1600000000000).UTC(),
			"where":   GeoPoint{Latitude: 0, Longitude: 0},
			"tags":    []any{"a", map[string]any{"deep": nil}},
		},
	}

	for _, v := range natives {
		w, err := c.Encode(v)
		require.NoError(t, err)
		back, err := c.Decode(w)
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}

func TestRoundTrip_ThroughJSONText(t *testing.T) {
	c := newTestCodec()
	v := map[string]any{
		"at":    time.UnixMicro(1700000000123456).UTC(),
		"ratio": 1.0,
		"count": int64(1),
	}

	w, err := c.Encode(v)
	require.NoError(t, err)
	data, err := wire.Marshal(w)
	require.NoError(t, err)
	parsed, err := wire.Parse(data)
	require.NoError(t, err)
	back, err := c.Decode(parsed)
	require.NoError(t, err)
	assert.Equal(t, v, back)
}

func TestEncode_Golden(t *testing.T) {
	c := newTestCodec()
	doc := map[string]any{
		"name":     "Ada",
		"age":      int64(36),
		"score":    9.5,
		"manager":  Reference{Path: "people/charles"},
		"born":     time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
		"location": GeoPoint{Latitude: 51.5072, Longitude: -0.1276},
		"tags":     []any{"math", nil, true},
	}

	w, err := c.EncodeData(doc)
	require.NoError(t, err)
	data, err := wire.MarshalIndent(w, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "encoded_document", data)
}
