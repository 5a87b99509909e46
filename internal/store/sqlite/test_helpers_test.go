package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// createTestStore opens a private in-memory store with a fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryDSN, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seed creates documents in one batch.
func seed(t *testing.T, s *Store, docs map[string]map[string]any) {
	t.Helper()
	b := s.NewBatch()
	for path, data := range docs {
		b.Create(path, data)
	}
	require.NoError(t, b.Commit(context.Background()))
}

// seedPeople creates people/p0..p{n-1} with an age field equal to the index.
func seedPeople(t *testing.T, s *Store, n int) {
	t.Helper()
	docs := map[string]map[string]any{}
	for i := 0; i < n; i++ {
		docs[fmt.Sprintf("people/p%d", i)] = map[string]any{"age": int64(i)}
	}
	seed(t, s, docs)
}
