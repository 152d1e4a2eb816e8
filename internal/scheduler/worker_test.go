package scheduler

import (
	"context"
	"errors"
	"testing"

	"ionizer_portal/internal/identity"
	"ionizer_portal/platform/logger"

	"github.com/hibiken/asynq"
)

type fakeRefresher struct {
	next   *identity.Session
	err    error
	expect int64
	calls  int
}

func (f *fakeRefresher) Refresh(_ context.Context, expectExpiresAt int64) (*identity.Session, error) {
	f.calls++
	f.expect = expectExpiresAt
	return f.next, f.err
}

type fakeSessions struct {
	refresher *fakeRefresher
	key       string
}

func (f *fakeSessions) RefresherFor(key string) Refresher {
	f.key = key
	return f.refresher
}

func newTestWorker(r *fakeRefresher) (*Worker, *fakeSessions) {
	sessions := &fakeSessions{refresher: r}
	return &Worker{sessions: sessions, log: logger.Discard()}, sessions
}

func refreshTask(t *testing.T, key string, expiresAt int64) *asynq.Task {
	t.Helper()
	task, err := NewSessionRefreshTask(SessionRefreshPayload{SessionKey: key, ExpiresAt: expiresAt})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestHandleSessionRefresh(t *testing.T) {
	r := &fakeRefresher{next: &identity.Session{ExpiresAt: 2000}}
	w, sessions := newTestWorker(r)

	if err := w.handleSessionRefresh(context.Background(), refreshTask(t, "browser-1", 1000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sessions.key != "browser-1" || r.expect != 1000 || r.calls != 1 {
		t.Fatalf("unexpected refresh call key=%q expect=%d calls=%d", sessions.key, r.expect, r.calls)
	}
}

func TestHandleSessionRefreshSkipped(t *testing.T) {
	w, _ := newTestWorker(&fakeRefresher{})
	if err := w.handleSessionRefresh(context.Background(), refreshTask(t, "browser-1", 1000)); err != nil {
		t.Fatalf("a superseded refresh must not fail: %v", err)
	}
}

func TestHandleSessionRefreshTransportErrorRetries(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	w, _ := newTestWorker(&fakeRefresher{err: boom})

	err := w.handleSessionRefresh(context.Background(), refreshTask(t, "browser-1", 1000))
	if !errors.Is(err, boom) {
		t.Fatalf("expected the transport error, got %v", err)
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatal("transport errors must be retried")
	}
}

func TestHandleSessionRefreshBadPayload(t *testing.T) {
	w, _ := newTestWorker(&fakeRefresher{})

	for _, payload := range []string{"{", `{"expiresAt":1}`} {
		err := w.handleSessionRefresh(context.Background(), asynq.NewTask(TaskSessionRefresh, []byte(payload)))
		if !errors.Is(err, asynq.SkipRetry) {
			t.Fatalf("payload %q: expected SkipRetry, got %v", payload, err)
		}
	}
}

func TestSessionRefreshTaskID(t *testing.T) {
	a := sessionRefreshTaskID(SessionRefreshPayload{SessionKey: "k", ExpiresAt: 1})
	b := sessionRefreshTaskID(SessionRefreshPayload{SessionKey: "k", ExpiresAt: 2})
	if a == b {
		t.Fatal("new tokens must get a new task id")
	}
	if a != sessionRefreshTaskID(SessionRefreshPayload{SessionKey: "k", ExpiresAt: 1}) {
		t.Fatal("task id must be stable")
	}
}
