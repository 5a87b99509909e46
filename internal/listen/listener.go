// Package listen runs live query subscriptions.
//
// Each Subscription owns one store stream and one delivery goroutine, so
// snapshots for a subscription reach its callback strictly in order and
// never concurrently. A failing stream is reported to the error handler and
// re-opened with exponential backoff; the subscription stays open until it
// is unsubscribed, its context ends, or its Registry is closed.
package listen

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/firedesk/internal/codec"
	"github.com/roach88/firedesk/internal/metrics"
	"github.com/roach88/firedesk/internal/query"
	"github.com/roach88/firedesk/internal/store"
)

// Default re-open backoff.
const (
	DefaultRetryInitial = 500 * time.Millisecond
	DefaultRetryMax     = 30 * time.Second
)

// SnapshotFunc receives the full, encoded result set of each snapshot.
type SnapshotFunc func(docs []query.Document)

// ErrorFunc receives stream, encoding and re-open errors.
type ErrorFunc func(err error)

// Listener opens subscriptions against one store.
type Listener struct {
	store    store.Store
	codec    *codec.Codec
	builder  *query.Builder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	registry *Registry

	retryInitial time.Duration
	retryMax     time.Duration
}

// Option configures a Listener.
type Option func(*Listener)

// WithCodec sets the codec used for query values and delivered documents.
func WithCodec(c *codec.Codec) Option {
	return func(l *Listener) { l.codec = c }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(lg *slog.Logger) Option {
	return func(l *Listener) { l.logger = lg }
}

// WithMetrics records subscription counts and deliveries in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

// WithRegistry registers subscriptions in r instead of DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(l *Listener) { l.registry = r }
}

// WithRetry sets the re-open backoff bounds.
func WithRetry(initial, max time.Duration) Option {
	return func(l *Listener) {
		if initial > 0 {
			l.retryInitial = initial
		}
		if max > 0 {
			l.retryMax = max
		}
	}
}

// New creates a Listener over s.
func New(s store.Store, opts ...Option) *Listener {
	l := &Listener{
		store:        s,
		codec:        codec.New(),
		logger:       slog.Default(),
		retryInitial: DefaultRetryInitial,
		retryMax:     DefaultRetryMax,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.registry == nil {
		l.registry = DefaultRegistry
	}
	l.builder = query.NewBuilder(s, query.WithCodec(l.codec), query.WithLogger(l.logger))
	return l
}

// Registry returns the registry holding this listener's subscriptions.
func (l *Listener) Registry() *Registry {
	return l.registry
}

// SubscribeOption configures one subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	subcollections bool
	onError        ErrorFunc
}

// WithSubcollections lists each delivered document's direct subcollections.
func WithSubcollections() SubscribeOption {
	return func(c *subscribeConfig) { c.subcollections = true }
}

// WithErrorHandler routes subscription errors to fn instead of the log.
func WithErrorHandler(fn ErrorFunc) SubscribeOption {
	return func(c *subscribeConfig) { c.onError = fn }
}

// Subscribe builds spec against collectionPath, opens a live stream and
// delivers every snapshot to onSnapshot until the subscription ends.
// Plan and open errors are returned synchronously; later errors go to the
// error handler. Cancelling ctx ends the subscription.
func (l *Listener) Subscribe(
	ctx context.Context,
	collectionPath string,
	spec *query.Spec,
	onSnapshot SnapshotFunc,
	opts ...SubscribeOption,
) (*Subscription, error) {
	cfg := subscribeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	q, err := l.builder.Build(ctx, collectionPath, spec)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	st, err := l.store.Listen(runCtx, q)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := newSubscription(l, q, spec, cancel)
	if cfg.onError == nil {
		cfg.onError = func(err error) {
			l.logger.Error("subscription error",
				"subscription", sub.id,
				"collection", q.Collection,
				"error", err)
		}
	}

	if !l.registry.add(sub) {
		st.Stop()
		cancel()
		return nil, store.NewProviderError("listen", q.Collection, store.CodeCanceled, ErrRegistryClosed)
	}
	if l.metrics != nil {
		l.metrics.ActiveSubscriptions.Inc()
	}
	l.logger.DebugContext(ctx, "subscribed",
		"subscription", sub.id,
		"query", q.String(),
		"subcollections", cfg.subcollections)

	go sub.run(runCtx, st, onSnapshot, cfg)
	return sub, nil
}

// Close ends the subscriptions this listener opened and waits for their
// delivery goroutines. Other listeners sharing its registry keep running.
// It must not be called from a snapshot callback.
func (l *Listener) Close() {
	l.registry.closeListener(l)
}
