package session

import (
	"context"
	"sync"
	"time"

	"ionizer_portal/internal/events"
	"ionizer_portal/internal/identity"
	"ionizer_portal/platform/logger"
)

const initializeTimeout = 10 * time.Second

// AuthFactory creates per-browser identity handles.
type AuthFactory interface {
	ForKey(key string) *identity.Auth
}

// Entry is a live browser session: its store and the identity handle the
// store is subscribed to.
type Entry struct {
	Store *Store
	Auth  *identity.Auth

	mu       sync.Mutex
	lastSeen time.Time
}

func (e *Entry) touch(now time.Time) {
	e.mu.Lock()
	e.lastSeen = now
	e.mu.Unlock()
}

func (e *Entry) idleSince(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Sub(e.lastSeen)
}

// Registry maps browser session keys to live entries. Entries are created
// and initialized on first use and evicted after idleTTL without use;
// their tokens stay in storage and are restored by the next Acquire.
type Registry struct {
	auths    AuthFactory
	resolver ProfileResolver
	bus      events.Bus
	log      *logger.Logger
	idleTTL  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
}

// NewRegistry creates a Registry.
func NewRegistry(auths AuthFactory, resolver ProfileResolver, bus events.Bus, idleTTL time.Duration, log *logger.Logger) *Registry {
	return &Registry{
		auths:    auths,
		resolver: resolver,
		bus:      bus,
		log:      log,
		idleTTL:  idleTTL,
		now:      time.Now,
		entries:  make(map[string]*Entry),
	}
}

// Acquire returns the entry for key, creating and initializing it if
// needed. Initialization is not bound to ctx's cancellation.
func (r *Registry) Acquire(ctx context.Context, key string) *Entry {
	r.mu.Lock()
	now := r.now()
	if e, ok := r.entries[key]; ok {
		// Touched under r.mu so a concurrent Evict cannot close it first.
		e.touch(now)
		r.mu.Unlock()
		return e
	}

	auth := r.auths.ForKey(key)
	e := &Entry{
		Store:    NewStore(key, auth, r.resolver, r.bus, r.log),
		Auth:     auth,
		lastSeen: now,
	}
	r.entries[key] = e
	r.mu.Unlock()

	initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), initializeTimeout)
	defer cancel()
	e.Store.Initialize(initCtx)
	return e
}

// Lookup returns the live entry for key without creating one.
func (r *Registry) Lookup(key string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return e, ok
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Evict closes and removes entries idle for longer than the idle TTL and
// returns how many were removed.
func (r *Registry) Evict() int {
	now := r.now()

	r.mu.Lock()
	var stale []*Entry
	for key, e := range r.entries {
		if e.idleSince(now) > r.idleTTL {
			stale = append(stale, e)
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.Store.Close()
	}
	if len(stale) > 0 {
		r.log.Debug("evicted idle sessions", "count", len(stale))
	}
	return len(stale)
}

// Run evicts idle entries until ctx is done, then closes every entry.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.Evict()
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*Entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.Store.Close()
	}
}
