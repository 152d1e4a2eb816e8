package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ionizer_portal/platform/logger"

	"golang.org/x/oauth2"
)

const (
	defaultRefreshMargin = 60 * time.Second
	defaultVerifierTTL   = 10 * time.Minute
)

// RefreshScheduler arranges a background refresh of a stored session.
type RefreshScheduler interface {
	ScheduleRefresh(ctx context.Context, sessionKey string, expiresAt int64, runAt time.Time) error
}

// Options tune a Provider. Zero values fall back to defaults.
// VerifyRemotely checks stored access tokens against GET /user; it is
// meant for deployments without a JWT secret for local signature checks.
type Options struct {
	RefreshMargin  time.Duration
	VerifierTTL    time.Duration
	Scheduler      RefreshScheduler
	Verifier       *TokenVerifier
	VerifyRemotely bool
	Now            func() time.Time
}

// Provider hands out per-browser Auth handles sharing one client and storage.
type Provider struct {
	client  *Client
	storage SessionStorage
	opts    Options
	log     *logger.Logger
}

// NewProvider creates a Provider.
func NewProvider(client *Client, storage SessionStorage, log *logger.Logger, opts Options) *Provider {
	if opts.RefreshMargin <= 0 {
		opts.RefreshMargin = defaultRefreshMargin
	}
	if opts.VerifierTTL <= 0 {
		opts.VerifierTTL = defaultVerifierTTL
	}
	if opts.Verifier == nil {
		opts.Verifier = NewTokenVerifier("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{client: client, storage: storage, opts: opts, log: log}
}

// SetScheduler installs the refresh scheduler after construction; the
// scheduler itself depends on the session registry built from this provider.
func (p *Provider) SetScheduler(s RefreshScheduler) {
	p.opts.Scheduler = s
}

// ForKey returns a handle for the browser identified by key. Handles for the
// same key share storage but not subscribers.
func (p *Provider) ForKey(key string) *Auth {
	return &Auth{
		key:  key,
		p:    p,
		subs: make(map[int]func(AuthEvent)),
		log:  p.log.WithSessionKey(key),
	}
}

// Auth is one browser's view of the identity provider.
//
// Every operation that changes the stored session holds mu for its whole
// duration, including the remote call, and emits its event before
// releasing it. Subscribers therefore see events in the order the
// operations completed and never run concurrently.
type Auth struct {
	key string
	p   *Provider
	log *logger.Logger

	mu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]func(AuthEvent)
	nextID int
}

// Key returns the browser session key.
func (a *Auth) Key() string { return a.key }

// Subscribe registers fn for auth events and returns its unsubscribe func.
func (a *Auth) Subscribe(fn func(AuthEvent)) (unsubscribe func()) {
	a.subMu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	a.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.subMu.Lock()
			delete(a.subs, id)
			a.subMu.Unlock()
		})
	}
}

// CurrentSession returns the stored session, refreshing it first when it is
// about to expire. It returns nil, nil when the browser is signed out or
// the stored session can no longer be used.
func (a *Auth) CurrentSession(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := a.p.storage.LoadSession(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if err := a.checkToken(session); err != nil {
		a.log.Warn("discarding stored session", "error", err)
		if delErr := a.p.storage.DeleteSession(ctx, a.key); delErr != nil {
			return nil, fmt.Errorf("delete session: %w", delErr)
		}
		return nil, nil
	}

	if session.ExpiresWithin(a.p.opts.RefreshMargin, a.p.opts.Now()) {
		return a.refreshLocked(ctx, session)
	}
	if a.p.opts.VerifyRemotely {
		if _, err := a.p.client.GetUser(ctx, session.AccessToken); err != nil {
			if !IsSessionGone(err) {
				return nil, fmt.Errorf("verify session: %w", err)
			}
			a.log.Warn("provider rejected stored session", "error", err)
			if delErr := a.p.storage.DeleteSession(ctx, a.key); delErr != nil {
				return nil, fmt.Errorf("delete session: %w", delErr)
			}
			return nil, nil
		}
	}
	return session, nil
}

// Refresh exchanges the stored refresh token for a new session. When
// expectExpiresAt is non-zero the refresh only happens if the stored
// session still has that expiry; a newer session means the scheduled
// refresh is obsolete and nil, nil is returned.
func (a *Auth) Refresh(ctx context.Context, expectExpiresAt int64) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := a.p.storage.LoadSession(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}
	if expectExpiresAt != 0 && session.ExpiresAt != expectExpiresAt {
		return nil, nil
	}
	return a.refreshLocked(ctx, session)
}

// SignInWithPassword signs in and emits SIGNED_IN.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := a.p.client.PasswordGrant(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := a.persistLocked(ctx, session); err != nil {
		return nil, err
	}
	a.emit(AuthEvent{Kind: EventSignedIn, Session: session})
	return session, nil
}

// SignInWithOAuth starts a PKCE flow and returns the provider URL. The
// session arrives later through ExchangeCode.
func (a *Auth) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (OAuthRedirect, error) {
	verifier := oauth2.GenerateVerifier()
	if err := a.p.storage.SaveVerifier(ctx, a.key, verifier, a.p.opts.VerifierTTL); err != nil {
		return OAuthRedirect{}, fmt.Errorf("save verifier: %w", err)
	}

	return OAuthRedirect{
		Provider: provider,
		URL:      a.p.client.AuthorizeURL(provider, redirectTo, oauth2.S256ChallengeFromVerifier(verifier)),
	}, nil
}

// ExchangeCode completes an OAuth flow and emits SIGNED_IN.
func (a *Auth) ExchangeCode(ctx context.Context, authCode string) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	verifier, err := a.p.storage.TakeVerifier(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("load verifier: %w", err)
	}
	if verifier == "" {
		return nil, ErrFlowStateNotFound
	}

	session, err := a.p.client.PKCEGrant(ctx, authCode, verifier)
	if err != nil {
		return nil, err
	}
	if err := a.persistLocked(ctx, session); err != nil {
		return nil, err
	}
	a.emit(AuthEvent{Kind: EventSignedIn, Session: session})
	return session, nil
}

// SignUpWithPassword registers a principal. When the provider confirms
// without email verification the new session is stored and SIGNED_IN is
// emitted; otherwise nothing changes locally.
func (a *Auth) SignUpWithPassword(ctx context.Context, email, password string, metadata map[string]any) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := a.p.client.SignUp(ctx, email, password, metadata)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	if err := a.persistLocked(ctx, session); err != nil {
		return nil, err
	}
	a.emit(AuthEvent{Kind: EventSignedIn, Session: session})
	return session, nil
}

// SignOut revokes the remote session, deletes it locally and emits
// SIGNED_OUT. If the provider cannot be reached the stored session is kept
// and the error returned. A session the provider no longer knows counts
// as signed out.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := a.p.storage.LoadSession(ctx, a.key)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if session != nil {
		if err := a.p.client.Logout(ctx, session.AccessToken); err != nil && !IsSessionGone(err) {
			return err
		}
		if err := a.p.storage.DeleteSession(ctx, a.key); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}

	a.emit(AuthEvent{Kind: EventSignedOut})
	return nil
}

func (a *Auth) refreshLocked(ctx context.Context, current *Session) (*Session, error) {
	next, err := a.p.client.RefreshGrant(ctx, current.RefreshToken)
	if err != nil {
		if IsInvalidRefreshToken(err) {
			// Revoked or already-used refresh token: the browser is signed out.
			a.log.Info("refresh token rejected", "error", err)
			if delErr := a.p.storage.DeleteSession(ctx, a.key); delErr != nil {
				return nil, fmt.Errorf("delete session: %w", delErr)
			}
			a.emit(AuthEvent{Kind: EventSignedOut})
			return nil, nil
		}
		return nil, err
	}

	if err := a.persistLocked(ctx, next); err != nil {
		return nil, err
	}
	a.emit(AuthEvent{Kind: EventTokenRefreshed, Session: next})
	return next, nil
}

func (a *Auth) persistLocked(ctx context.Context, session *Session) error {
	if err := a.p.storage.SaveSession(ctx, a.key, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if a.p.opts.Scheduler != nil && session.ExpiresAt != 0 {
		runAt := session.Expiry().Add(-a.p.opts.RefreshMargin)
		if err := a.p.opts.Scheduler.ScheduleRefresh(ctx, a.key, session.ExpiresAt, runAt); err != nil {
			// The next CurrentSession call refreshes on demand.
			a.log.Warn("failed to schedule token refresh", "error", err)
		}
	}
	return nil
}

func (a *Auth) checkToken(session *Session) error {
	if !a.p.opts.Verifier.Verifies() {
		return nil
	}
	claims, err := a.p.opts.Verifier.Parse(session.AccessToken)
	if err != nil {
		return err
	}
	if claims.Subject != session.User.ID {
		return fmt.Errorf("token subject %q does not match user %q", claims.Subject, session.User.ID)
	}
	return nil
}

func (a *Auth) emit(ev AuthEvent) {
	a.subMu.Lock()
	fns := make([]func(AuthEvent), 0, len(a.subs))
	for id := 0; id < a.nextID; id++ {
		if fn, ok := a.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	a.subMu.Unlock()

	a.log.Debug("auth event", "kind", string(ev.Kind), "subscribers", len(fns))
	for _, fn := range fns {
		fn(ev)
	}
}
