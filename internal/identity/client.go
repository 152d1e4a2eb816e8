package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ionizer_portal/platform/logger"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

// Client is the HTTP client for the identity provider's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	log        *logger.Logger
}

// NewClient creates a client for the provider at baseURL (e.g. https://x.example.co/auth/v1).
func NewClient(baseURL, anonKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		log:        log,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// PasswordGrant exchanges email and password for a session.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (*Session, error) {
	return c.tokenGrant(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// RefreshGrant exchanges a refresh token for a new session.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (*Session, error) {
	return c.tokenGrant(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

// PKCEGrant exchanges an OAuth authorization code and its verifier for a session.
func (c *Client) PKCEGrant(ctx context.Context, authCode, verifier string) (*Session, error) {
	return c.tokenGrant(ctx, "pkce", map[string]string{
		"auth_code":     authCode,
		"code_verifier": verifier,
	})
}

// SignUp registers a new principal. The returned session is nil when the
// provider requires email confirmation before the first sign-in.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/signup", "", body, &raw); err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	if session.AccessToken == "" {
		return nil, nil
	}
	normalizeSession(&session, time.Now())
	return &session, nil
}

// Logout revokes the session behind accessToken.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout?scope=local", accessToken, nil, nil)
}

// GetUser returns the principal behind accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// AuthorizeURL builds the provider redirect for a PKCE OAuth flow.
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	params := url.Values{}
	params.Set("provider", provider)
	params.Set("redirect_to", redirectTo)
	params.Set("code_challenge", codeChallenge)
	params.Set("code_challenge_method", "s256")
	return fmt.Sprintf("%s/authorize?%s", c.baseURL, params.Encode())
}

func (c *Client) tokenGrant(ctx context.Context, grantType string, body any) (*Session, error) {
	var session Session
	path := "/token?grant_type=" + url.QueryEscape(grantType)
	if err := c.do(ctx, http.MethodPost, path, "", body, &session); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("identity: %s grant returned no access token", grantType)
	}
	normalizeSession(&session, time.Now())
	return &session, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("identity request failed", "error", err, "method", method, "path", redactQuery(path))
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// Success - continue to decode
	case resp.StatusCode >= 500:
		c.log.Error("identity upstream error", "status", resp.StatusCode, "path", redactQuery(path))
		return decodeAPIError(resp)
	default:
		c.log.Debug("identity request rejected", "status", resp.StatusCode, "path", redactQuery(path))
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Error("identity decode failed", "error", err)
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body apiErrorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(data, &body)
	return body.toAPIError(resp.StatusCode)
}

func normalizeSession(s *Session, now time.Time) {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
}

func redactQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
