// Package session holds the per-browser Session Store: the single source of
// truth for who is signed in, their profile and whether they are an admin.
package session

import (
	"ionizer_portal/internal/events"
	"ionizer_portal/internal/identity"
	"ionizer_portal/internal/profile"
)

// Principal is the read-only cached copy of the authenticated identity.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// PrincipalOf extracts the principal carried by s, or nil.
func PrincipalOf(s *identity.Session) *Principal {
	if s == nil || s.User.ID == "" {
		return nil
	}
	return &Principal{
		ID:    s.User.ID,
		Email: s.User.Email,
		Name:  s.User.DisplayName(),
	}
}

// State is what observers read. Loading is true from start (or a principal
// change) until the session pull and, for a principal, both lookups settle.
type State struct {
	Principal *Principal       `json:"principal"`
	Profile   *profile.Profile `json:"profile"`
	IsAdmin   bool             `json:"isAdmin"`
	Role      profile.Role     `json:"role,omitempty"`
	Loading   bool             `json:"loading"`
}

// initialState is the state before the first session pull completes.
func initialState() State {
	return State{Loading: true}
}

// Authenticated reports whether a principal is present.
func (s State) Authenticated() bool {
	return s.Principal != nil
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	if s.Principal != nil {
		p := *s.Principal
		out.Principal = &p
	}
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	return out
}

func (s State) snapshot(generation uint64) events.SessionSnapshot {
	snap := events.SessionSnapshot{
		IsAdmin:    s.IsAdmin,
		Role:       string(s.Role),
		Loading:    s.Loading,
		HasProfile: s.Profile != nil,
		Generation: generation,
	}
	if s.Principal != nil {
		snap.PrincipalID = s.Principal.ID
		snap.Email = s.Principal.Email
	}
	return snap
}
