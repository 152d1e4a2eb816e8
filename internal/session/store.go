package session

import (
	"context"
	"sync"

	"ionizer_portal/internal/events"
	"ionizer_portal/internal/identity"
	"ionizer_portal/internal/profile"
	"ionizer_portal/internal/rowstore"
	"ionizer_portal/platform/logger"
)

// Remote is the part of the identity handle the store consumes.
type Remote interface {
	CurrentSession(ctx context.Context) (*identity.Session, error)
	Subscribe(fn func(identity.AuthEvent)) (unsubscribe func())
}

// ProfileResolver turns a principal id into profile and admin status.
type ProfileResolver interface {
	Resolve(ctx context.Context, principalID string) profile.Resolution
}

const triggerInitialize = "INITIALIZE"

// Store is one browser's session state.
//
// Every trigger (Initialize, each auth event, Reset) takes a new
// generation. Lookup results are applied only while their generation is
// still current, so the most recent trigger wins regardless of which
// lookup finishes last.
type Store struct {
	key      string
	remote   Remote
	resolver ProfileResolver
	bus      events.Bus
	log      *logger.Logger

	// baseCtx outlives requests; it carries the session key for logging
	// and notifications and is cancelled by Close.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu          sync.Mutex
	state       State
	gen         uint64
	pending     int
	idle        chan struct{}
	closed      bool
	unsubscribe func()
}

// NewStore creates a store in the loading state and subscribes it to
// remote's auth events. Events arriving before Initialize completes are
// handled normally and supersede the initial pull.
func NewStore(key string, remote Remote, resolver ProfileResolver, bus events.Bus, log *logger.Logger) *Store {
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), logger.SessionKeyKey, key))

	idle := make(chan struct{})
	close(idle)

	s := &Store{
		key:      key,
		remote:   remote,
		resolver: resolver,
		bus:      bus,
		log:      log.WithSessionKey(key),
		baseCtx:  ctx,
		cancel:   cancel,
		state:    initialState(),
		idle:     idle,
	}
	s.unsubscribe = remote.Subscribe(s.OnAuthEvent)
	return s
}

// Key returns the browser session key.
func (s *Store) Key() string { return s.key }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// SnapshotEvent returns the current state in the shape published on the
// event bus.
func (s *Store) SnapshotEvent() events.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.snapshot(s.gen)
}

// Initialize pulls the current session once. A failed pull is treated as
// signed out. It returns after the principal is known; lookups for it
// continue in the background (see Wait).
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.state.Loading = true
	s.mu.Unlock()

	session, err := s.remote.CurrentSession(ctx)
	if err != nil {
		s.log.Warn("initial session pull failed", "error", err)
		session = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		s.log.Debug("initial session superseded", "generation", gen)
		return
	}
	s.applyLocked(triggerInitialize, session)
}

// OnAuthEvent applies an auth transition. A sign-out is fully reflected
// in the state by the time OnAuthEvent returns.
func (s *Store) OnAuthEvent(ev identity.AuthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.gen++
	session := ev.Session
	if ev.Kind == identity.EventSignedOut {
		session = nil
	}
	s.applyLocked(string(ev.Kind), session)
}

// Wait blocks until no lookups are in flight or ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset discards all state and in-flight results and returns the store to
// its initial loading state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.state = initialState()
	s.publishLocked("RESET")
}

// Close unsubscribes from auth events and cancels in-flight lookups.
// Snapshot keeps working on a closed store.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	unsubscribe()
	s.cancel()
}

// applyLocked moves to the state implied by session under the current
// generation and starts lookups when a principal is present.
func (s *Store) applyLocked(trigger string, session *identity.Session) {
	principal := PrincipalOf(session)

	if principal == nil {
		s.state = State{Loading: false}
		s.publishLocked(trigger)
		return
	}

	changed := s.state.Principal == nil || s.state.Principal.ID != principal.ID
	if changed {
		// No profile or grant of the previous principal may survive, even
		// while the new lookups run.
		s.state.Profile = nil
		s.state.IsAdmin = false
		s.state.Role = ""
		s.state.Loading = true
	}
	s.state.Principal = principal
	s.publishLocked(trigger)

	s.startLookupLocked(s.gen, principal.ID, session.AccessToken)
}

func (s *Store) startLookupLocked(gen uint64, principalID, accessToken string) {
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++

	ctx := rowstore.WithAccessToken(s.baseCtx, accessToken)
	go s.resolve(ctx, gen, principalID)
}

func (s *Store) resolve(ctx context.Context, gen uint64, principalID string) {
	res := s.resolver.Resolve(ctx, principalID)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.lookupDoneLocked()

	if s.closed || gen != s.gen {
		s.log.Debug("discarding stale lookup", "generation", gen, "current", s.gen)
		return
	}

	s.state.Profile = res.Profile
	s.state.IsAdmin = res.IsAdmin
	s.state.Role = res.Role
	s.state.Loading = false
	s.publishLocked("RESOLVED")
}

func (s *Store) lookupDoneLocked() {
	s.pending--
	if s.pending == 0 {
		close(s.idle)
	}
}

func (s *Store) publishLocked(trigger string) {
	principalID := ""
	if s.state.Principal != nil {
		principalID = s.state.Principal.ID
	}
	s.log.SessionTransition(trigger, principalID, s.gen, s.state.Loading)

	if s.bus == nil {
		return
	}
	s.bus.Publish(s.baseCtx, events.SessionStateChanged{
		BaseEvent:  events.NewBaseEvent(),
		SessionKey: s.key,
		Trigger:    trigger,
		State:      s.state.snapshot(s.gen),
	})
}
