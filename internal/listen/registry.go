package listen

import (
	"errors"
	"sort"
	"sync"
)

// ErrRegistryClosed is returned when subscribing through a closed registry.
var ErrRegistryClosed = errors.New("subscription registry is closed")

// DefaultRegistry holds the subscriptions of every Listener created without
// WithRegistry. CloseAll on it tears down all of the process's default
// listeners.
var DefaultRegistry = NewRegistry()

// Registry tracks open subscriptions so they can be torn down together.
type Registry struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: map[string]*Subscription{}}
}

func (r *Registry) add(s *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.subs[s.id] = s
	return true
}

func (r *Registry) remove(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, s.id)
}

// Len returns the number of open subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// IDs returns the ids of the open subscriptions, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll unsubscribes every open subscription, waits for their delivery
// goroutines to exit and refuses new subscriptions. It must not be called
// from a snapshot callback.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	subs := make([]*Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	stopAndWait(subs)
}

// closeListener unsubscribes the subscriptions opened by l and waits for
// them. The registry stays open.
func (r *Registry) closeListener(l *Listener) {
	r.mu.Lock()
	var subs []*Subscription
	for _, s := range r.subs {
		if s.listener == l {
			subs = append(subs, s)
		}
	}
	r.mu.Unlock()

	stopAndWait(subs)
}

func stopAndWait(subs []*Subscription) {
	for _, s := range subs {
		s.Unsubscribe()
	}
	for _, s := range subs {
		<-s.Done()
	}
}
