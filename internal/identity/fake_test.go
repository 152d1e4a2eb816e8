package identity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ionizer_portal/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const testSecret = "test-secret"

// fakeProvider is a minimal GoTrue-compatible server.
type fakeProvider struct {
	t *testing.T

	mu             sync.Mutex
	users          map[string]fakeUser // by email
	refreshTokens  map[string]string   // token -> user id
	issued         int
	expiresIn      int
	logoutStatus   int
	logoutCalls    int
	tokenStatus    int
	userStatus     int
	userCalls      int
	signupMetadata map[string]any
	lastVerifier   string
}

type fakeUser struct {
	id       string
	password string
	name     string
}

func newFakeProvider(t *testing.T) (*fakeProvider, *httptest.Server) {
	t.Helper()
	f := &fakeProvider{
		t:             t,
		users:         map[string]fakeUser{},
		refreshTokens: map[string]string{},
		expiresIn:     3600,
		logoutStatus:  http.StatusNoContent,
	}
	f.users["user@example.com"] = fakeUser{id: "user-1", password: "secret123", name: "Asha"}

	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeProvider) set(fn func(*fakeProvider)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeProvider) logouts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutCalls
}

func (f *fakeProvider) userLookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userCalls
}

func (f *fakeProvider) verifier() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastVerifier
}

func (f *fakeProvider) metadata() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signupMetadata
}

func (f *fakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != "anon" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing apikey"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/token":
		if f.tokenStatus != 0 {
			writeJSON(w, f.tokenStatus, map[string]string{"msg": "upstream unavailable"})
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.token(w, r.URL.Query().Get("grant_type"), body)
	case r.Method == http.MethodPost && r.URL.Path == "/signup":
		var body struct {
			Email    string         `json:"email"`
			Password string         `json:"password"`
			Data     map[string]any `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Password) < 6 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error_code": "weak_password",
				"msg":        "Password should be at least 6 characters.",
			})
			return
		}
		f.signupMetadata = body.Data
		writeJSON(w, http.StatusOK, map[string]any{"id": "new-user", "email": body.Email})
	case r.Method == http.MethodGet && r.URL.Path == "/user":
		f.userCalls++
		if f.userStatus != 0 {
			writeJSON(w, f.userStatus, map[string]string{"msg": "invalid JWT"})
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "missing token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "user-1", "email": "user@example.com"})
	case r.Method == http.MethodPost && r.URL.Path == "/logout":
		f.logoutCalls++
		w.WriteHeader(f.logoutStatus)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeProvider) token(w http.ResponseWriter, grant string, body map[string]string) {
	switch grant {
	case "password":
		u, ok := f.users[body["email"]]
		if !ok || u.password != body["password"] {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error_code": "invalid_credentials",
				"msg":        "Invalid login credentials",
			})
			return
		}
		writeJSON(w, http.StatusOK, f.issue(u.id, body["email"], u.name))
	case "refresh_token":
		id, ok := f.refreshTokens[body["refresh_token"]]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid Refresh Token: Refresh Token Not Found",
			})
			return
		}
		delete(f.refreshTokens, body["refresh_token"])
		writeJSON(w, http.StatusOK, f.issue(id, "user@example.com", ""))
	case "pkce":
		if body["auth_code"] != "good-code" || body["code_verifier"] == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error_code": "flow_state_not_found", "msg": "invalid flow state"})
			return
		}
		f.lastVerifier = body["code_verifier"]
		writeJSON(w, http.StatusOK, f.issue("oauth-user", "oauth@example.com", "Ravi"))
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "unsupported grant"})
	}
}

func (f *fakeProvider) issue(id, email, name string) map[string]any {
	f.issued++
	rt := fmt.Sprintf("rt-%d", f.issued)
	f.refreshTokens[rt] = id
	return map[string]any{
		"access_token":  signToken(f.t, id, email, time.Now().Add(time.Duration(f.expiresIn)*time.Second)),
		"refresh_token": rt,
		"token_type":    "bearer",
		"expires_in":    f.expiresIn,
		"user": map[string]any{
			"id":            id,
			"email":         email,
			"user_metadata": map[string]any{"name": name},
		},
	}
}

func signToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStorage(rdb, time.Hour), mr
}

func newTestProvider(t *testing.T, opts Options) (*Provider, *fakeProvider, *RedisStorage) {
	t.Helper()
	fake, srv := newFakeProvider(t)
	storage, _ := newTestStorage(t)
	client := NewClient(srv.URL, "anon", logger.Discard())
	return NewProvider(client, storage, logger.Discard(), opts), fake, storage
}

type recordedEvents struct {
	mu     sync.Mutex
	events []AuthEvent
}

func (r *recordedEvents) record(ev AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}
