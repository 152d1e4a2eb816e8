package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ionizer_portal/platform/logger"

	"github.com/gin-gonic/gin"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishWithoutClients(t *testing.T) {
	s := New(logger.Discard())
	s.Publish("nobody", Event{Type: EventToast})
	if s.Clients("nobody") != 0 {
		t.Fatal("expected no clients")
	}
}

func TestHandlerStreamsEventsForItsKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(logger.Discard())

	handler := s.Handler(
		func(*gin.Context) (string, bool) { return "browser-1", true },
		func(*gin.Context) *Event { return &Event{Type: EventSession, Data: map[string]bool{"loading": true}} },
	)

	ctx, cancel := context.WithCancel(context.Background())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/session/events", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		handler(c)
		close(done)
	}()

	waitFor(t, func() bool { return s.Clients("browser-1") == 1 })
	s.Publish("browser-2", Event{Type: EventToast, Data: "someone else"})
	s.Publish("browser-1", Event{Type: EventToast, Data: "hello"})

	// Let the stream drain before disconnecting.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	for _, want := range []string{"event:connected", "event:session", `"loading":true`, "event:toast", `"hello"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("stream missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "someone else") {
		t.Fatal("event for another session leaked into the stream")
	}
	if s.Clients("browser-1") != 0 {
		t.Fatal("client must be removed on disconnect")
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q", got)
	}
}

func TestHandlerRejectsUnknownSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(logger.Discard())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	s.Handler(func(*gin.Context) (string, bool) { return "", false }, nil)(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCloseEndsStreams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(logger.Discard()).WithKeepAlive(10 * time.Millisecond)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	done := make(chan struct{})
	go func() {
		s.Handler(func(*gin.Context) (string, bool) { return "k", true }, nil)(c)
		close(done)
	}()

	waitFor(t, func() bool { return s.Clients("k") == 1 })
	time.Sleep(30 * time.Millisecond)
	s.Close()
	s.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end on Close")
	}
	if !strings.Contains(w.Body.String(), ": keepalive") {
		t.Fatal("expected keep-alive comments")
	}
}
