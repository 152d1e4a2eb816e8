// Package service implements the auth facade: the only way callers change
// authentication state. It never touches session state directly; stores
// learn about changes through the identity handle's auth events.
package service

import (
	"context"
	"errors"
	"strings"

	"ionizer_portal/internal/events"
	"ionizer_portal/internal/identity"
	"ionizer_portal/platform/apperr"
	"ionizer_portal/platform/logger"
	"ionizer_portal/platform/sanitize"
	"ionizer_portal/platform/validator"
)

// CallbackPath receives OAuth redirects.
const CallbackPath = "/auth/callback"

// User-facing messages.
const (
	MsgSignedIn         = "Successfully logged in!"
	MsgSignedUp         = "Account created successfully! Please check your email to verify your account."
	MsgSignedOut        = "Signed out"
	MsgSignInFailed     = "Failed to log in"
	MsgOAuthFailed      = "Failed to log in with Google"
	MsgSignUpFailed     = "Failed to create account"
	MsgSignOutFailed    = "Failed to sign out"
	MsgServiceDown      = "Authentication service unavailable"
	MsgRateLimited      = "Too many attempts, please try again later"
	MsgFlowExpired      = "Sign-in link expired, please try again"
	MsgUnknownProvider  = "Unsupported sign-in provider"
	msgInvalidSignInArg = "Email and password are required"
)

// Authenticator is the per-browser identity handle the facade drives.
type Authenticator interface {
	Key() string
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) (identity.OAuthRedirect, error)
	ExchangeCode(ctx context.Context, authCode string) (*identity.Session, error)
	SignUpWithPassword(ctx context.Context, email, password string, metadata map[string]any) (*identity.Session, error)
	SignOut(ctx context.Context) error
}

// Config is what the facade needs from configuration.
type Config interface {
	GetAppBaseURL() string
	GetOAuthDefaultProvider() string
}

// Service is the auth facade.
type Service struct {
	cfg      Config
	bus      events.Bus
	validate *validator.Validator
	log      *logger.Logger
}

// New creates the facade. Failures and successes are raised as toasts on
// bus for the browser that made the call.
func New(cfg Config, bus events.Bus, log *logger.Logger) *Service {
	return &Service{cfg: cfg, bus: bus, validate: validator.New(), log: log}
}

// SignInWithPassword signs the browser in. The returned session is the one
// the identity handle has already stored and announced.
func (s *Service) SignInWithPassword(ctx context.Context, a Authenticator, email, password string) (*identity.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation(msgInvalidSignInArg)
	}

	session, err := a.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, s.fail(ctx, a, "sign_in", email, err, apperr.KindUnauthorized, MsgSignInFailed)
	}

	s.log.WithContext(ctx).AuthEvent("sign_in", email, true, "")
	s.toast(ctx, a, events.ToastSuccess, MsgSignedIn)
	return session, nil
}

// SignInWithOAuth starts a provider redirect flow. An empty provider uses
// the configured default. Control returns through CompleteOAuth.
func (s *Service) SignInWithOAuth(ctx context.Context, a Authenticator, provider string) (identity.OAuthRedirect, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || provider == "default" {
		provider = s.cfg.GetOAuthDefaultProvider()
	}
	if err := s.validate.Var(provider, "required,alphanum,max=32"); err != nil {
		return identity.OAuthRedirect{}, apperr.BadRequest(MsgUnknownProvider)
	}

	redirect, err := a.SignInWithOAuth(ctx, provider, s.callbackURL())
	if err != nil {
		return identity.OAuthRedirect{}, s.fail(ctx, a, "oauth_start", provider, err, apperr.KindBadRequest, MsgOAuthFailed)
	}

	s.log.WithContext(ctx).AuthEvent("oauth_start", provider, true, "")
	return redirect, nil
}

// CompleteOAuth exchanges the callback code for a session.
func (s *Service) CompleteOAuth(ctx context.Context, a Authenticator, code string) (*identity.Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, s.fail(ctx, a, "oauth_callback", "", identity.ErrFlowStateNotFound, apperr.KindBadRequest, MsgOAuthFailed)
	}

	session, err := a.ExchangeCode(ctx, code)
	if err != nil {
		return nil, s.fail(ctx, a, "oauth_callback", "", err, apperr.KindUnauthorized, MsgOAuthFailed)
	}

	s.log.WithContext(ctx).AuthEvent("oauth_callback", session.User.Email, true, "")
	s.toast(ctx, a, events.ToastSuccess, MsgSignedIn)
	return session, nil
}

// OAuthDenied records a provider redirect that came back with an error
// instead of a code.
func (s *Service) OAuthDenied(ctx context.Context, a Authenticator, description string) {
	s.log.WithContext(ctx).AuthEvent("oauth_callback", "", false, description)
	s.toast(ctx, a, events.ToastError, MsgOAuthFailed)
}

// SignUpWithPassword registers a principal with displayName as metadata.
// The profile row is created outside this service. A nil session means
// the provider wants the email verified first.
func (s *Service) SignUpWithPassword(ctx context.Context, a Authenticator, email, password, displayName string) (*identity.Session, error) {
	email = normalizeEmail(email)
	metadata := map[string]any{"name": sanitize.DisplayName(displayName)}

	session, err := a.SignUpWithPassword(ctx, email, password, metadata)
	if err != nil {
		return nil, s.fail(ctx, a, "sign_up", email, err, apperr.KindValidation, MsgSignUpFailed)
	}

	s.log.WithContext(ctx).AuthEvent("sign_up", email, true, "")
	s.toast(ctx, a, events.ToastSuccess, MsgSignedUp)
	return session, nil
}

// SignOut ends the browser's session. On failure the session is left as
// it was and the error returned, so the caller may retry.
func (s *Service) SignOut(ctx context.Context, a Authenticator) error {
	if err := a.SignOut(ctx); err != nil {
		return s.fail(ctx, a, "sign_out", "", err, apperr.KindBadRequest, MsgSignOutFailed)
	}
	s.log.WithContext(ctx).AuthEvent("sign_out", "", true, "")
	return nil
}

// fail classifies err, logs it, raises a toast and returns a typed error.
// Provider rejections keep the provider's message under rejectKind;
// throttling is KindRateLimited; everything else is a transport failure.
func (s *Service) fail(ctx context.Context, a Authenticator, op, subject string, err error, rejectKind apperr.Kind, fallback string) error {
	var out *apperr.Error
	switch {
	case errors.Is(err, identity.ErrFlowStateNotFound):
		out = apperr.Wrap(apperr.KindBadRequest, MsgFlowExpired, err)
	case identity.IsRateLimited(err):
		out = apperr.Wrap(apperr.KindRateLimited, MsgRateLimited, err)
	case identity.IsClientError(err):
		msg := fallback
		if apiErr, ok := identity.AsAPIError(err); ok && apiErr.Message != "" {
			msg = apiErr.Message
		}
		out = apperr.Wrap(rejectKind, msg, err)
	default:
		out = apperr.Remote(MsgServiceDown, err)
	}
	out = out.WithOp("auth." + op)

	s.log.WithContext(ctx).AuthEvent(op, subject, false, err.Error())
	s.toast(ctx, a, events.ToastError, out.Message)
	return out
}

func (s *Service) toast(ctx context.Context, a Authenticator, level, message string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.ToastRaised{
		BaseEvent:  events.NewBaseEvent(),
		SessionKey: a.Key(),
		Level:      level,
		Message:    message,
	})
}

func (s *Service) callbackURL() string {
	return strings.TrimRight(s.cfg.GetAppBaseURL(), "/") + CallbackPath
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
