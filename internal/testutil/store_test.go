package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/store"
)

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("r")
	assert.Equal(t, "r0001", g.Next())
	assert.Equal(t, "r0002", g.Next())
	assert.Equal(t, "doc-0001", NewSequentialIDs("").Next())
}

func TestFaultStore_FailsChosenCommit(t *testing.T) {
	ctx := context.Background()
	f := NewFaultStore(OpenStore(t)).FailCommitsContaining("c/bad", errors.New("injected"))

	good := f.NewBatch()
	good.Create("c/ok", map[string]any{"n": int64(1)})
	require.NoError(t, good.Commit(ctx))

	bad := f.NewBatch()
	bad.Create("c/bad", map[string]any{})
	err := bad.Commit(ctx)
	assert.True(t, store.IsProviderError(err))

	snap, err := f.Get(ctx, "c/bad")
	require.NoError(t, err)
	assert.False(t, snap.Exists)

	snap, err = f.Get(ctx, "c/ok")
	require.NoError(t, err)
	assert.True(t, snap.Exists)

	assert.Equal(t, [][]string{{"c/ok"}, {"c/bad"}}, f.Commits())
	assert.Equal(t, []string{"NewBatch", "Commit", "NewBatch", "Commit", "Get", "Get"}, f.Calls())
}

func TestFaultStore_RecordsWithoutInner(t *testing.T) {
	ctx := context.Background()
	f := NewFaultStore(nil).WithSequentialIDs(NewSequentialIDs("id"))

	assert.Equal(t, "id0001", f.NewDocID("c"))
	require.NoError(t, f.Update(ctx, "c/d", []store.Update{{Field: store.Field("a"), Value: int64(1)}}))
	require.NoError(t, f.RecursiveDelete(ctx, "c", paths.KindCollection))

	assert.Equal(t, []UpdateCall{{Path: "c/d", Updates: []store.Update{{Field: store.Field("a"), Value: int64(1)}}}}, f.Updates())
	assert.Equal(t, []RecursiveDeleteCall{{Path: "c", Kind: paths.KindCollection}}, f.RecursiveDeletes())
}
