package specfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/firedesk/internal/query"
	"github.com/roach88/firedesk/internal/store"
	"github.com/roach88/firedesk/internal/wire"
)

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatOf("q.yml"))
	assert.Equal(t, FormatYAML, FormatOf("Q.YAML"))
	assert.Equal(t, FormatCUE, FormatOf("dir/q.cue"))
	assert.Equal(t, FormatJSON, FormatOf("q.json"))
	assert.Equal(t, FormatJSON, FormatOf("-"))
}

func TestQuery_AllFormatsAgree(t *testing.T) {
	want := &query.Spec{
		Where: []query.Filter{
			{Field: "age", Op: store.OpGreaterEqual, Value: wire.Int(18)},
			{Field: "city", Op: store.OpIn, Value: wire.List{wire.String("Oslo"), wire.String("Bergen")}},
		},
		OrderBy:    []query.Order{{Field: "age", Direction: store.Desc}},
		Limit:      10,
		StartAfter: &query.Cursor{Ref: "people/alice"},
	}

	for _, name := range []string{"query.json", "query.yaml", "query.cue"} {
		t.Run(name, func(t *testing.T) {
			spec, err := Query(filepath.Join("testdata", name))
			require.NoError(t, err)
			assert.Equal(t, want, spec)
		})
	}
}

func TestRecords_YAML(t *testing.T) {
	recs, err := Records(filepath.Join("testdata", "records.yaml"))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, wire.String("alice"), recs[0]["id"])
	assert.Equal(t, wire.Int(30), recs[0]["age"])
	assert.Equal(t, wire.Float(0.5), recs[0]["ratio"])
	assert.Equal(t, wire.TimestampMillis(1700000000000), recs[0]["joined"])
	assert.Equal(t, wire.Geo(59.9, 10.7), recs[0]["home"])
	assert.Equal(t, wire.String("2024-01-01"), recs[1]["note"], "timestamp-like scalars stay strings")
}

func TestRecords_SingleObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "solo"}`), 0o644))

	recs, err := Records(path)
	require.NoError(t, err)
	assert.Equal(t, []wire.Map{{"name": wire.String("solo")}}, recs)
}

func TestRecords_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"a": 1}, 2]`), 0o644))
	_, err := Records(path)
	assert.ErrorContains(t, err, "record 1 must be an object")

	require.NoError(t, os.WriteFile(path, []byte(`"x"`), 0o644))
	_, err = Records(path)
	assert.ErrorContains(t, err, "records must be a list")
}

func TestUpdates_JSON(t *testing.T) {
	updates, err := Updates(filepath.Join("testdata", "updates.json"))
	require.NoError(t, err)
	assert.Equal(t, []wire.Value{
		wire.String("age"), wire.Int(31),
		wire.List{wire.String("address"), wire.String("zip.code")}, wire.String("0150"),
		wire.String("legacy"), wire.Undefined{},
	}, updates)
}

func TestUpdates_NotAList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u.yaml")
	require.NoError(t, os.WriteFile(path, []byte("age: 3\n"), 0o644))
	_, err := Updates(path)
	assert.ErrorContains(t, err, "updates must be a list")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.json"))
	assert.ErrorContains(t, err, "failed to read")

	_, err = Load(filepath.Join("testdata", "open.cue"))
	assert.ErrorContains(t, err, "not concrete")

	_, err = Decode([]byte("a: [1"), FormatYAML, "x.yaml")
	assert.ErrorContains(t, err, "failed to parse YAML")

	_, err = Decode([]byte("a: {"), FormatCUE, "x.cue")
	assert.ErrorContains(t, err, "failed to compile CUE")
}
