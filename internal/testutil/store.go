package testutil

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/store"
	"github.com/roach88/firedesk/internal/store/sqlite"
)

// OpenStore opens an in-memory sqlite store stamped by a frozen clock and
// closes it when the test ends.
func OpenStore(t testing.TB) *sqlite.Store {
	t.Helper()
	clock := NewDeterministicClockAt(DefaultEpoch, 0)
	s, err := sqlite.Open(sqlite.MemoryDSN, sqlite.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// UpdateCall is one recorded Store.Update.
type UpdateCall struct {
	Path    string
	Updates []store.Update
}

// RecursiveDeleteCall is one recorded Store.RecursiveDelete.
type RecursiveDeleteCall struct {
	Path string
	Kind paths.Kind
}

// FaultStore wraps a store.Store, records the calls made through it and
// fails chosen batch commits.
//
// A nil inner store is allowed for tests that only inspect recorded calls;
// forwarded calls then succeed without effect.
type FaultStore struct {
	inner store.Store
	ids   *SequentialIDs

	mu               sync.Mutex
	calls            []string
	updates          []UpdateCall
	recursiveDeletes []RecursiveDeleteCall
	commits          [][]string
	failCommit       func(paths []string) error
	commitDelay      time.Duration
}

var _ store.Store = (*FaultStore)(nil)

// NewFaultStore wraps inner.
func NewFaultStore(inner store.Store) *FaultStore {
	return &FaultStore{inner: inner}
}

// WithSequentialIDs makes NewDocID return ids from g instead of the inner
// store's.
func (f *FaultStore) WithSequentialIDs(g *SequentialIDs) *FaultStore {
	f.ids = g
	return f
}

// FailCommits installs fn; a batch commit fails with fn's error when fn
// returns non-nil for the batch's document paths.
func (f *FaultStore) FailCommits(fn func(paths []string) error) *FaultStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCommit = fn
	return f
}

// FailCommitsContaining fails every commit that writes documentPath.
func (f *FaultStore) FailCommitsContaining(documentPath string, err error) *FaultStore {
	return f.FailCommits(func(ps []string) error {
		if slices.Contains(ps, documentPath) {
			return store.NewProviderError("commit", documentPath, store.CodeUnavailable, err)
		}
		return nil
	})
}

// DelayCommits makes every commit sleep for d first.
func (f *FaultStore) DelayCommits(d time.Duration) *FaultStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitDelay = d
	return f
}

func (f *FaultStore) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// Calls returns the names of the store methods called, in order.
func (f *FaultStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Updates returns the recorded Update calls.
func (f *FaultStore) Updates() []UpdateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.updates)
}

// RecursiveDeletes returns the recorded RecursiveDelete calls.
func (f *FaultStore) RecursiveDeletes() []RecursiveDeleteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.recursiveDeletes)
}

// Commits returns the document paths of every attempted commit.
func (f *FaultStore) Commits() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.commits)
}

func (f *FaultStore) NewDocID(collectionPath string) string {
	f.record("NewDocID")
	if f.ids != nil {
		return f.ids.Next()
	}
	if f.inner == nil {
		return NewSequentialIDs("").Next()
	}
	return f.inner.NewDocID(collectionPath)
}

func (f *FaultStore) NewBatch() store.Batch {
	f.record("NewBatch")
	var inner store.Batch
	if f.inner != nil {
		inner = f.inner.NewBatch()
	}
	return &faultBatch{f: f, inner: inner}
}

func (f *FaultStore) Update(ctx context.Context, documentPath string, updates []store.Update) error {
	f.mu.Lock()
	f.calls = append(f.calls, "Update")
	f.updates = append(f.updates, UpdateCall{Path: documentPath, Updates: slices.Clone(updates)})
	f.mu.Unlock()
	if f.inner == nil {
		return nil
	}
	return f.inner.Update(ctx, documentPath, updates)
}

func (f *FaultStore) Get(ctx context.Context, documentPath string) (*store.Snapshot, error) {
	f.record("Get")
	if f.inner == nil {
		return &store.Snapshot{Path: documentPath}, nil
	}
	return f.inner.Get(ctx, documentPath)
}

func (f *FaultStore) RunQuery(ctx context.Context, q *store.Query) ([]store.Snapshot, error) {
	f.record("RunQuery")
	if f.inner == nil {
		return nil, nil
	}
	return f.inner.RunQuery(ctx, q)
}

func (f *FaultStore) Count(ctx context.Context, q *store.Query) (int64, error) {
	f.record("Count")
	if f.inner == nil {
		return 0, nil
	}
	return f.inner.Count(ctx, q)
}

func (f *FaultStore) Listen(ctx context.Context, q *store.Query) (store.Stream, error) {
	f.record("Listen")
	return f.inner.Listen(ctx, q)
}

func (f *FaultStore) RecursiveDelete(ctx context.Context, path string, kind paths.Kind) error {
	f.mu.Lock()
	f.calls = append(f.calls, "RecursiveDelete")
	f.recursiveDeletes = append(f.recursiveDeletes, RecursiveDeleteCall{Path: path, Kind: kind})
	f.mu.Unlock()
	if f.inner == nil {
		return nil
	}
	return f.inner.RecursiveDelete(ctx, path, kind)
}

func (f *FaultStore) ListCollections(ctx context.Context, documentPath string) ([]string, error) {
	f.record("ListCollections")
	if f.inner == nil {
		return nil, nil
	}
	return f.inner.ListCollections(ctx, documentPath)
}

func (f *FaultStore) ListDocuments(ctx context.Context, collectionPath string) ([]string, error) {
	f.record("ListDocuments")
	if f.inner == nil {
		return nil, nil
	}
	return f.inner.ListDocuments(ctx, collectionPath)
}

func (f *FaultStore) Close() error {
	if f.inner == nil {
		return nil
	}
	return f.inner.Close()
}

type faultBatch struct {
	f     *FaultStore
	inner store.Batch
	paths []string
}

func (b *faultBatch) Create(documentPath string, data map[string]any) {
	b.paths = append(b.paths, documentPath)
	if b.inner != nil {
		b.inner.Create(documentPath, data)
	}
}

func (b *faultBatch) Delete(documentPath string) {
	b.paths = append(b.paths, documentPath)
	if b.inner != nil {
		b.inner.Delete(documentPath)
	}
}

func (b *faultBatch) Len() int {
	return len(b.paths)
}

func (b *faultBatch) Commit(ctx context.Context) error {
	b.f.mu.Lock()
	b.f.calls = append(b.f.calls, "Commit")
	b.f.commits = append(b.f.commits, slices.Clone(b.paths))
	fail := b.f.failCommit
	delay := b.f.commitDelay
	b.f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail != nil {
		if err := fail(b.paths); err != nil {
			return err
		}
	}
	if b.inner == nil {
		return nil
	}
	return b.inner.Commit(ctx)
}
