package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/firedesk/internal/config"
)

// workspace is a temp dir holding a config with one sqlite target.
type workspace struct {
	t      *testing.T
	config string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	t.Setenv(config.TargetEnv, "")

	dir := t.TempDir()
	cfg := fmt.Sprintf(`
targets:
  - name: local
    driver: sqlite
    dsn: %s
listen:
  retry_initial: 10ms
  retry_max: 50ms
`, filepath.Join(dir, "test.db"))
	path := filepath.Join(dir, "firedesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return &workspace{t: t, config: path}
}

// run executes the CLI against the workspace config.
func (w *workspace) run(args ...string) (stdout, stderr string, code int) {
	w.t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(append([]string{"--config", w.config}, args...), &out, &errOut)
	return out.String(), errOut.String(), code
}

// ok executes the CLI and requires success.
func (w *workspace) ok(args ...string) string {
	w.t.Helper()
	out, errOut, code := w.run(args...)
	require.Equal(w.t, ExitSuccess, code, "stderr: %s", errOut)
	return out
}

func (w *workspace) seedUsers() {
	w.t.Helper()
	out := w.ok("create", "users", "testdata/users.yaml")
	assert.Equal(w.t, "created 3 documents in 1 chunks\n", out)
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestCreateAndBrowse(t *testing.T) {
	w := newWorkspace(t)
	w.seedUsers()
	w.ok("create", "users/alice/posts", "testdata/posts.json")

	assert.Equal(t, "users\n", w.ok("collections"))
	assert.Equal(t, "posts\n", w.ok("collections", "users/alice"))
	assert.Equal(t, "users/alice\nusers/bob\nusers/carol\n", w.ok("documents", "users"))

	out := w.ok("documents", "users/alice/posts", "--format", "json")
	assert.Equal(t, `{"status":"ok","data":["users/alice/posts/p1"]}`+"\n", out)
}

func TestCreate_JSONResult(t *testing.T) {
	w := newWorkspace(t)
	out := w.ok("create", "users", "testdata/users.yaml", "--chunk-size", "2", "--format", "json")

	var resp struct {
		Status string      `json:"status"`
		Data   WriteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"users/alice", "users/bob", "users/carol"}, resp.Data.Paths)
	assert.Equal(t, 2, resp.Data.Chunks)
}

func TestCreate_DuplicateIsPartialFailure(t *testing.T) {
	w := newWorkspace(t)
	w.seedUsers()

	_, errOut, code := w.run("create", "users", "testdata/users.yaml", "--format", "json")
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(errOut), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePartialBatch, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "created 0 of 3 documents")
}

func TestQuery_Text(t *testing.T) {
	w := newWorkspace(t)
	w.seedUsers()

	out := w.ok("query", "users", "--spec", "testdata/adults.yaml")
	newGoldie(t).Assert(t, "query_text", []byte(out))
}

func TestQuery_JSON(t *testing.T) {
	w := newWorkspace(t)
	w.seedUsers()

	out := w.ok("query", "users", "--spec", "testdata/adults.yaml", "--limit", "1", "--format", "json")

	var resp struct {
		Status string           `json:"status"`
		Data   []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "carol", resp.Data[0]["id"])
	assert.Equal(t, "users/carol", resp.Data[0]["path"])
}

func TestQuery_Empty(t *testing.T) {
	w := newWorkspace(t)

	assert.Empty(t, w.ok("query", "users"))
	assert.Equal(t, `{"status":"ok","data":[]}`+"\n", w.ok("query", "users", "--format", "json"))
}

func TestCount(t *testing.T) {
	w := newWorkspace(t)
	w.seedUsers()

	assert.Equal(t, "3\n", w.ok("count", "users"))
	assert.Equal(t, "2\n", w.ok("count", "users", "--spec", "testdata/adults.yaml"))
	assert.Equal(t, `{"status":"ok","data":{"count":2}}`+"\n",
		w.ok("count", "users", "--spec", "testdata/adults.yaml", "--format", "json"))
}

func TestUpdate(t *testing.T) {
	w := newWorkspace(t)
	w.seedUsers()

	out := w.ok("update", "users/alice", "testdata/updates.json")
	assert.Equal(t, "updated users/alice (2 fields)\n", out)

	out = w.ok("query", "users", "--spec", "testdata/adults.yaml")
	assert.Contains(t, out, `users/alice {"age":31,"id":"alice"}`)
}

func TestUpdate_MissingDocument(t *testing.T) {
	w := newWorkspace(t)

	_, errOut, code := w.run("update", "users/nobody", "testdata/updates.json", "--format", "json")
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(errOut), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeProvider, resp.Error.Code)
	assert.Equal(t, map[string]any{"op": "update", "code": "NotFound", "path": "users/nobody"}, resp.Error.Details)
}

func TestDeleteAndRecursiveDelete(t *testing.T) {
	w := newWorkspace(t)
	w.seedUsers()
	w.ok("create", "users/alice/posts", "testdata/posts.json")

	assert.Equal(t, "deleted 2 documents\n", w.ok("delete", "users/bob", "users/nobody"))
	assert.Equal(t, "users/alice\nusers/carol\n", w.ok("documents", "users"))

	// delete leaves subcollections behind
	w.ok("delete", "users/alice")
	assert.Equal(t, "users/alice/posts/p1\n", w.ok("documents", "users/alice/posts"))

	out := w.ok("rdelete", "users")
	assert.Equal(t, "deleted collection users and all descendants\n", out)
	assert.Empty(t, w.ok("collections"))
	assert.Empty(t, w.ok("documents", "users/alice/posts"))
}

func TestPathParityErrors(t *testing.T) {
	w := newWorkspace(t)

	tests := []struct {
		name string
		args []string
	}{
		{"query on document", []string{"query", "users/alice"}},
		{"count on document", []string{"count", "users/alice"}},
		{"documents on document", []string{"documents", "users/alice"}},
		{"collections on collection", []string{"collections", "users"}},
		{"delete collection", []string{"delete", "users"}},
		{"rdelete root", []string{"rdelete", "/"}},
		{"update collection", []string{"update", "users", "testdata/updates.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, code := w.run(append(tt.args, "--format", "json")...)
			assert.Equal(t, ExitCommandError, code)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(errOut), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, ErrCodePathParity, resp.Error.Code)
		})
	}
}

func TestInputErrors(t *testing.T) {
	w := newWorkspace(t)
	dir := t.TempDir()

	notList := filepath.Join(dir, "records.json")
	require.NoError(t, os.WriteFile(notList, []byte(`"alice"`), 0o644))
	badSpec := filepath.Join(dir, "spec.json")
	require.NoError(t, os.WriteFile(badSpec, []byte(`{"where": [["age", "~", 1]]}`), 0o644))

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"records not a list", []string{"create", "users", notList}, ErrCodeInput},
		{"missing records file", []string{"create", "users", filepath.Join(dir, "nope.json")}, ErrCodeInput},
		{"invalid operator", []string{"query", "users", "--spec", badSpec}, ErrCodeSchemaViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, code := w.run(append(tt.args, "--format", "json")...)
			assert.Equal(t, ExitCommandError, code)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(errOut), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestConfigErrors(t *testing.T) {
	t.Setenv(config.TargetEnv, "")
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("targets: []\n"), 0o644))

	var out, errOut bytes.Buffer
	code := Execute([]string{"--config", bad, "collections"}, &out, &errOut)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut.String(), "Error [E002]: failed to load config")

	w := newWorkspace(t)
	_, errText, exit := w.run("--target", "prod", "collections")
	assert.Equal(t, ExitCommandError, exit)
	assert.Contains(t, errText, `unknown target "prod"`)
}

func TestListen_FirstSnapshot(t *testing.T) {
	w := newWorkspace(t)
	w.seedUsers()

	out, errOut, code := w.run("listen", "users", "--snapshots", "1")
	require.Equal(t, ExitSuccess, code, "stderr: %s", errOut)
	newGoldie(t).Assert(t, "listen_text", []byte(out))
}

func TestListen_Subcollections(t *testing.T) {
	w := newWorkspace(t)
	w.seedUsers()
	w.ok("create", "users/alice/posts", "testdata/posts.json")

	out := w.ok("listen", "users", "--spec", "testdata/alice.json", "--subcollections", "--snapshots", "1")
	newGoldie(t).Assert(t, "listen_subcollections", []byte(out))
}

func TestListen_JSON(t *testing.T) {
	w := newWorkspace(t)
	w.seedUsers()

	out := w.ok("listen", "users", "--spec", "testdata/adults.yaml", "--snapshots", "1", "--format", "json")

	var resp struct {
		Status string           `json:"status"`
		Data   []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "carol", resp.Data[0]["id"])
	assert.Equal(t, "alice", resp.Data[1]["id"])
}

func TestListen_PlanErrorIsSynchronous(t *testing.T) {
	w := newWorkspace(t)

	_, errOut, code := w.run("listen", "users/alice", "--snapshots", "1")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "Error [E102]")
}
