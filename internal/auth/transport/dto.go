package transport

import (
	"time"

	"ionizer_portal/internal/session"
)

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type SignUpRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// SessionInfo describes the stored session without exposing its tokens.
type SessionInfo struct {
	Principal *session.Principal `json:"principal"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

type AuthResponse struct {
	Message string       `json:"message"`
	Next    string       `json:"next"`
	Session *SessionInfo `json:"session,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
