package sqlite

import (
	"context"
	"sync"

	"github.com/roach88/firedesk/internal/store"
)

// hub fans out commit notifications to the streams watching a collection.
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[*stream]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: map[string]map[*stream]struct{}{}}
}

func (h *hub) add(st *stream) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.subs[st.q.Collection]
	if !ok {
		set = map[*stream]struct{}{}
		h.subs[st.q.Collection] = set
	}
	set[st] = struct{}{}
	return true
}

func (h *hub) remove(st *stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[st.q.Collection]; ok {
		delete(set, st)
		if len(set) == 0 {
			delete(h.subs, st.q.Collection)
		}
	}
}

func (h *hub) notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for st := range h.subs[collection] {
		st.poke()
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	streams := make([]*stream, 0)
	for _, set := range h.subs {
		for st := range set {
			streams = append(streams, st)
		}
	}
	h.subs = map[string]map[*stream]struct{}{}
	h.closed = true
	h.mu.Unlock()

	for _, st := range streams {
		st.halt()
	}
}

// stream re-runs its query whenever the collection changes.
type stream struct {
	s       *Store
	q       *store.Query
	changed chan struct{}
	stopped chan struct{}
	once    sync.Once
	primed  bool
}

// Listen opens a stream over q. The first Next returns the current result
// set; each later Next waits for a commit to the collection.
func (s *Store) Listen(ctx context.Context, q *store.Query) (store.Stream, error) {
	st := &stream{
		s:       s,
		q:       q,
		changed: make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	if !s.hub.add(st) {
		return nil, store.NewProviderError("listen", q.Collection, store.CodeCanceled, store.ErrStreamStopped)
	}
	return st, nil
}

func (st *stream) poke() {
	select {
	case st.changed <- struct{}{}:
	default:
	}
}

func (st *stream) halt() {
	st.once.Do(func() { close(st.stopped) })
}

// Next blocks until the result set may have changed and returns it.
func (st *stream) Next(ctx context.Context) ([]store.Snapshot, error) {
	if st.primed {
		select {
		case <-st.changed:
		case <-st.stopped:
			return nil, store.ErrStreamStopped
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	select {
	case <-st.stopped:
		return nil, store.ErrStreamStopped
	default:
	}
	st.primed = true
	return st.s.RunQuery(ctx, st.q)
}

// Stop detaches the stream; a blocked Next returns store.ErrStreamStopped.
func (st *stream) Stop() {
	st.s.hub.remove(st)
	st.halt()
}
