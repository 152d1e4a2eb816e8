// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"ionizer_portal/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Session Domain Events
// =============================================================================

// SessionSnapshot is the observer-facing view of a browser session.
// Bus subscribers read it without importing the session package.
type SessionSnapshot struct {
	PrincipalID string `json:"principalId,omitempty"`
	Email       string `json:"email,omitempty"`
	IsAdmin     bool   `json:"isAdmin"`
	Role        string `json:"role,omitempty"`
	Loading     bool   `json:"loading"`
	HasProfile  bool   `json:"hasProfile"`
	Generation  uint64 `json:"generation"`
}

// SessionStateChanged is published after every session store mutation.
type SessionStateChanged struct {
	BaseEvent
	SessionKey string          `json:"-"`
	Trigger    string          `json:"trigger"`
	State      SessionSnapshot `json:"state"`
}

func (e SessionStateChanged) EventName() string { return "session.state.changed" }

// =============================================================================
// Notification Domain Events
// =============================================================================

// Toast levels understood by the SPA.
const (
	ToastError   = "error"
	ToastSuccess = "success"
)

// ToastRaised is published when a user-visible notification should be shown
// in the browser identified by SessionKey.
type ToastRaised struct {
	BaseEvent
	SessionKey string `json:"-"`
	Level      string `json:"level"`
	Message    string `json:"message"`
}

func (e ToastRaised) EventName() string { return "notify.toast.raised" }
