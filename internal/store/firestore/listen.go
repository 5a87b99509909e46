package firestore

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/roach88/firedesk/internal/store"
)

// stream adapts a QuerySnapshotIterator to store.Stream.
type stream struct {
	collection string
	it         *firestore.QuerySnapshotIterator
	cancel     context.CancelFunc
	once       sync.Once
	stopped    chan struct{}
}

// Listen opens a snapshot listener over q. The listener owns a context
// derived from ctx; Stop cancels it.
func (s *Store) Listen(ctx context.Context, q *store.Query) (store.Stream, error) {
	query, err := s.sdkQuery(q)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	return &stream{
		collection: q.Collection,
		it:         query.Snapshots(ctx),
		cancel:     cancel,
		stopped:    make(chan struct{}),
	}, nil
}

// Next returns the next full result set. The SDK iterator is bound to the
// context given to Listen; ctx only short-circuits calls made after it is
// done.
func (st *stream) Next(ctx context.Context) ([]store.Snapshot, error) {
	select {
	case <-st.stopped:
		return nil, store.ErrStreamStopped
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qs, err := st.it.Next()
	if err != nil {
		select {
		case <-st.stopped:
			return nil, store.ErrStreamStopped
		default:
		}
		if errors.Is(err, iterator.Done) {
			return nil, store.ErrStreamStopped
		}
		return nil, wrap("listen", st.collection, err)
	}

	docs, err := qs.Documents.GetAll()
	if err != nil {
		return nil, wrap("listen", st.collection, err)
	}
	return snapshots(docs), nil
}

// Stop ends the listener; a blocked Next returns store.ErrStreamStopped.
func (st *stream) Stop() {
	st.once.Do(func() {
		close(st.stopped)
		st.cancel()
		st.it.Stop()
	})
}
