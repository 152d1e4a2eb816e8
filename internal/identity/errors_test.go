package identity

import (
	"errors"
	"net/http"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		client         bool
		rateLimited    bool
		invalidRefresh bool
	}{
		{"invalid grant", &APIError{Status: http.StatusBadRequest, Code: "invalid_grant"}, true, false, true},
		{"already used", &APIError{Status: http.StatusBadRequest, Code: "refresh_token_already_used"}, true, false, true},
		{"unauthorized", &APIError{Status: http.StatusUnauthorized}, true, false, true},
		{"forbidden", &APIError{Status: http.StatusForbidden}, true, false, true},
		{"session gone", &APIError{Status: http.StatusNotFound, Code: "session_not_found"}, true, false, true},
		{"weak password", &APIError{Status: http.StatusUnprocessableEntity, Code: "weak_password"}, true, false, false},
		{"rate limited", &APIError{Status: http.StatusTooManyRequests, Code: "over_request_rate_limit"}, false, true, false},
		{"timeout", &APIError{Status: http.StatusRequestTimeout}, false, false, false},
		{"outage", &APIError{Status: http.StatusServiceUnavailable, Code: "invalid_grant"}, false, false, false},
		{"transport", errors.New("dial tcp: connection refused"), false, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsClientError(tc.err); got != tc.client {
				t.Errorf("IsClientError = %v, want %v", got, tc.client)
			}
			if got := IsRateLimited(tc.err); got != tc.rateLimited {
				t.Errorf("IsRateLimited = %v, want %v", got, tc.rateLimited)
			}
			if got := IsInvalidRefreshToken(tc.err); got != tc.invalidRefresh {
				t.Errorf("IsInvalidRefreshToken = %v, want %v", got, tc.invalidRefresh)
			}
		})
	}
}
