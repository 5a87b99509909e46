// Package session owns the store handles of a process: one per configured
// target, opened on first use and closed together.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/firedesk/internal/config"
	"github.com/roach88/firedesk/internal/store"
	"github.com/roach88/firedesk/internal/store/firestore"
	"github.com/roach88/firedesk/internal/store/sqlite"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("session pool is closed")

// Opener opens the store for a target.
type Opener func(ctx context.Context, t config.Target) (store.Store, error)

// OpenTarget is the default Opener: it dispatches on the target's driver.
func OpenTarget(ctx context.Context, t config.Target) (store.Store, error) {
	switch t.Driver {
	case config.DriverFirestore:
		s, err := firestore.Open(ctx, firestore.Config{
			ProjectID:       t.ProjectID,
			DatabaseID:      t.DatabaseID,
			EmulatorHost:    t.EmulatorHost,
			CredentialsFile: t.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(t.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("target %q: unknown driver %q", t.Name, t.Driver)
	}
}

// Pool lazily opens and caches one store per target name. Callers borrow
// the handles; only Close releases them.
type Pool struct {
	cfg    *config.Config
	open   Opener
	logger *slog.Logger

	mu     sync.Mutex
	stores map[string]store.Store
	closed bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithOpener replaces OpenTarget.
func WithOpener(fn Opener) Option {
	return func(p *Pool) { p.open = fn }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a pool over cfg's targets.
func NewPool(cfg *config.Config, opts ...Option) *Pool {
	p := &Pool{
		cfg:    cfg,
		open:   OpenTarget,
		logger: slog.Default(),
		stores: map[string]store.Store{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the store for the named target ("" for the default target),
// opening it on first use. Concurrent callers share one handle.
func (p *Pool) Get(ctx context.Context, name string) (store.Store, error) {
	target, err := p.cfg.Target(name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if s, ok := p.stores[target.Name]; ok {
		return s, nil
	}

	s, err := p.open(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("open target %q: %w", target.Name, err)
	}
	p.stores[target.Name] = s
	p.logger.DebugContext(ctx, "opened target", "target", target.Name, "driver", target.Driver)
	return s, nil
}

// Close closes every open store. Later calls are no-ops.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for name, s := range p.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close target %q: %w", name, err))
		}
	}
	p.stores = nil
	return errors.Join(errs...)
}
