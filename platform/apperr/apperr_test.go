package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindRemote, http.StatusServiceUnavailable},
		{KindPending, http.StatusServiceUnavailable},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindInternal, http.StatusInternalServerError},
		{KindUnknown, http.StatusBadRequest},
	}

	for _, tc := range tests {
		if got := New(tc.kind, "x").HTTPStatus(); got != tc.want {
			t.Errorf("kind %d: got status %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestGetKindFollowsWrappedChain(t *testing.T) {
	base := Unauthorized("Invalid login credentials")
	wrapped := fmt.Errorf("sign in: %w", base)

	if GetKind(wrapped) != KindUnauthorized {
		t.Fatalf("expected KindUnauthorized through wrapping, got %d", GetKind(wrapped))
	}
	if !Is(wrapped, KindUnauthorized) {
		t.Fatal("Is should see through fmt.Errorf wrapping")
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("plain errors should have KindUnknown")
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(Remote("Identity service unavailable", errors.New("dial tcp")), "fallback"); got != "Identity service unavailable" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := UserMessage(errors.New("pq: secret detail"), "Something went wrong"); got != "Something went wrong" {
		t.Fatalf("untyped errors must use fallback, got %q", got)
	}
}

func TestErrorStringIncludesOpAndCause(t *testing.T) {
	err := Remote("service unavailable", errors.New("timeout")).WithOp("identity.token")
	want := "identity.token: service unavailable: timeout"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, err.Err) {
		t.Fatal("Unwrap should expose the cause")
	}
}
