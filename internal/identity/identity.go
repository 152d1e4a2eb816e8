// Package identity is the client side of the hosted identity provider.
//
// Client speaks the provider's REST API. Auth is a per-browser handle that
// owns the browser's stored session, serializes token mutations and emits
// typed auth events to its subscribers in arrival order.
package identity

import (
	"strings"
	"time"
)

// EventKind names an auth state transition.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// User is the principal as reported by the identity provider.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// DisplayName returns the name attached at sign-up, if any.
func (u User) DisplayName() string {
	if name, ok := u.UserMetadata["name"].(string); ok {
		return strings.TrimSpace(name)
	}
	return ""
}

// Session is an issued token pair plus the principal it belongs to.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Expiry returns the access token expiry.
func (s *Session) Expiry() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

// ExpiresWithin reports whether the access token expires before now+margin.
func (s *Session) ExpiresWithin(margin time.Duration, now time.Time) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return !now.Add(margin).Before(s.Expiry())
}

// AuthEvent is delivered to subscribers on every session transition.
// Session is nil for EventSignedOut.
type AuthEvent struct {
	Kind    EventKind
	Session *Session
}

// OAuthRedirect is where the browser must navigate to continue an OAuth sign-in.
type OAuthRedirect struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
}
