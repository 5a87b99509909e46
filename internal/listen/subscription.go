package listen

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/query"
	"github.com/roach88/firedesk/internal/store"
)

// Subscription is one live query. Its methods are safe for concurrent use.
type Subscription struct {
	id       string
	listener *Listener
	plan     *store.Query
	spec     *query.Spec

	cancel  context.CancelFunc
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func newSubscription(l *Listener, plan *store.Query, spec *query.Spec, cancel context.CancelFunc) *Subscription {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Subscription{
		id:       id.String(),
		listener: l,
		plan:     plan,
		spec:     spec,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// ID returns the subscription's unique id.
func (s *Subscription) ID() string {
	return s.id
}

// Collection returns the watched collection path.
func (s *Subscription) Collection() string {
	return s.plan.Collection
}

// Unsubscribe stops the subscription. It does not wait: a delivery already
// running may finish, but no delivery starts after Unsubscribe returns.
// Calling it again has no effect.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.cancel()
	})
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Count returns how many documents match the subscription's filters,
// ignoring its orderings, limits and cursors.
func (s *Subscription) Count(ctx context.Context) (int64, error) {
	return s.listener.builder.Count(ctx, s.plan.Collection, s.spec)
}

func (s *Subscription) run(ctx context.Context, st store.Stream, onSnapshot SnapshotFunc, cfg subscribeConfig) {
	l := s.listener
	defer func() {
		if st != nil {
			st.Stop()
		}
		l.registry.remove(s)
		if l.metrics != nil {
			l.metrics.ActiveSubscriptions.Dec()
		}
		l.logger.Debug("subscription ended", "subscription", s.id)
		close(s.done)
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.retryInitial
	bo.MaxInterval = l.retryMax
	bo.MaxElapsedTime = 0
	bo.Reset()

	report := func(err error) {
		if l.metrics != nil {
			l.metrics.DeliveryErrors.Inc()
		}
		cfg.onError(err)
	}

	for {
		if st == nil {
			var err error
			st, err = l.store.Listen(ctx, s.plan)
			if err != nil {
				if s.ended(ctx) {
					return
				}
				report(err)
				if !s.wait(ctx, bo.NextBackOff()) {
					return
				}
				continue
			}
		}

		snaps, err := st.Next(ctx)
		if err != nil {
			if s.ended(ctx) {
				return
			}
			st.Stop()
			st = nil
			if errors.Is(err, store.ErrStreamStopped) {
				// The store is closing; there is nothing to re-open.
				return
			}
			report(err)
			if !s.wait(ctx, bo.NextBackOff()) {
				return
			}
			continue
		}
		bo.Reset()

		docs, err := s.documents(ctx, snaps, cfg.subcollections)
		if err != nil {
			if s.ended(ctx) {
				return
			}
			report(err)
			continue
		}
		if s.stopped.Load() {
			return
		}
		onSnapshot(docs)
		if l.metrics != nil {
			l.metrics.Deliveries.Inc()
		}
	}
}

func (s *Subscription) ended(ctx context.Context) bool {
	return s.stopped.Load() || ctx.Err() != nil
}

// wait sleeps for d and reports whether the subscription is still live.
func (s *Subscription) wait(ctx context.Context, d time.Duration) bool {
	if d == backoff.Stop {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return !s.stopped.Load()
	case <-ctx.Done():
		return false
	}
}

func (s *Subscription) documents(ctx context.Context, snaps []store.Snapshot, subcollections bool) ([]query.Document, error) {
	l := s.listener
	docs := make([]query.Document, 0, len(snaps))
	for _, snap := range snaps {
		d, err := query.NewDocument(l.codec, snap)
		if err != nil {
			return nil, err
		}
		if subcollections {
			children, err := l.store.ListCollections(ctx, snap.Path)
			if err != nil {
				return nil, err
			}
			d.Subcollections = make([]string, len(children))
			for i, c := range children {
				d.Subcollections[i] = paths.Base(c)
			}
		}
		docs = append(docs, d)
	}
	return docs, nil
}
