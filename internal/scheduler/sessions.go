package scheduler

import (
	"ionizer_portal/internal/identity"
	"ionizer_portal/internal/session"
)

// LiveSessions prefers the identity handle of a live browser session, so
// its store observes TOKEN_REFRESHED, and falls back to a detached handle
// that only updates storage.
type LiveSessions struct {
	registry *session.Registry
	auths    session.AuthFactory
}

func NewLiveSessions(registry *session.Registry, auths session.AuthFactory) *LiveSessions {
	return &LiveSessions{registry: registry, auths: auths}
}

func (s *LiveSessions) RefresherFor(key string) Refresher {
	if entry, ok := s.registry.Lookup(key); ok {
		return entry.Auth
	}
	return s.auths.ForKey(key)
}

var (
	_ Sessions  = (*LiveSessions)(nil)
	_ Refresher = (*identity.Auth)(nil)
)
