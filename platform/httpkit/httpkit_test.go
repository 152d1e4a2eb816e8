package httpkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"ionizer_portal/platform/apperr"
	"ionizer_portal/platform/logger"
	"ionizer_portal/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHandleError(t *testing.T) {
	type signIn struct {
		Email string `json:"email" validate:"required,email"`
	}
	verr := validator.New().Struct(signIn{Email: "nope"})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"typed", apperr.Unauthorized("Invalid login credentials"), http.StatusUnauthorized, "Invalid login credentials"},
		{"wrapped", fmt.Errorf("sign in: %w", apperr.Remote("Authentication service unavailable", errors.New("dial"))), http.StatusServiceUnavailable, "Authentication service unavailable"},
		{"validation", verr, http.StatusBadRequest, "validation failed"},
		{"untyped", errors.New("pq: password authentication failed"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) {
				if !HandleError(c, tc.err) {
					t.Error("expected the error to be handled")
				}
			})
			rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if body := decodeError(t, rec); body.Error != tc.wantMsg {
				t.Fatalf("error = %q, want %q", body.Error, tc.wantMsg)
			}
		})
	}
}

func TestHandleErrorNil(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if HandleError(c, nil) {
		t.Fatal("nil errors must not be handled")
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(logger.RequestIDKey).(string)
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(generated); err != nil || seen != generated {
		t.Fatalf("expected a generated id on header and context, header=%q ctx=%q", generated, seen)
	}

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	if got := serve(r, req).Header().Get(RequestIDHeader); got != incoming {
		t.Fatalf("a well-formed incoming id must be kept, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	if got := serve(r, req).Header().Get(RequestIDHeader); got == "<script>" {
		t.Fatal("a malformed incoming id must be replaced")
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	r := gin.New()
	r.GET("/anon", func(c *gin.Context) {
		if MustGetIdentity(c) != nil {
			t.Error("expected no identity")
		}
	})
	r.GET("/admin", func(c *gin.Context) {
		SetIdentity(c, "p1", true, "admin")
		id := MustGetIdentity(c)
		if id == nil || id.PrincipalID() != "p1" || !id.IsAdmin() || id.Role() != "admin" {
			t.Errorf("unexpected identity %+v", id)
		}
		if uid, _ := c.Request.Context().Value(logger.UserIDKey).(string); uid != "p1" {
			t.Errorf("user id missing from request context")
		}
		c.Status(http.StatusNoContent)
	})

	if rec := serve(r, httptest.NewRequest(http.MethodGet, "/anon", nil)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status %d", rec.Code)
	}
	if rec := serve(r, httptest.NewRequest(http.MethodGet, "/admin", nil)); rec.Code != http.StatusNoContent {
		t.Fatalf("admin: status %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(0.001), 2, logger.Discard())
	r := gin.New()
	r.Use(limiter.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		if rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d within burst: status %d", i, rec.Code)
		}
	}
	if rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the burst, got %d", rec.Code)
	}
}

func TestRateLimitSharesLimiterAcrossConcurrentRequests(t *testing.T) {
	const burst, clients = 5, 50
	limiter := NewIPRateLimiter(rate.Limit(0.001), burst, logger.Discard())
	r := gin.New()
	r.Use(limiter.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	var allowed atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code == http.StatusNoContent {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := allowed.Load(); got != burst {
		t.Fatalf("first requests from one address must share a bucket: %d allowed, want %d", got, burst)
	}
}
