package identity

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrFlowStateNotFound is returned when an OAuth callback arrives without a stored verifier.
var ErrFlowStateNotFound = errors.New("identity: oauth flow state not found")

// APIError is an error response from the identity provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity: %s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("identity: %s (status %d)", e.Message, e.Status)
}

// AsAPIError returns the first *APIError in err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsClientError reports whether the provider rejected the request itself
// (bad credentials, invalid grant, weak password). Transport failures,
// 5xx responses, timeouts and rate limits are not client errors: the same
// request may succeed later.
func IsClientError(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status >= 400 && apiErr.Status < 500 && !retryableStatus(apiErr.Status)
}

// IsRateLimited reports whether the provider throttled the request.
func IsRateLimited(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == http.StatusTooManyRequests
}

// invalidRefreshCodes are provider codes after which a refresh token can
// never succeed.
var invalidRefreshCodes = map[string]bool{
	"invalid_grant":              true,
	"refresh_token_not_found":    true,
	"refresh_token_already_used": true,
	"session_not_found":          true,
	"session_expired":            true,
	"user_not_found":             true,
}

// IsInvalidRefreshToken reports whether a refresh grant failed because the
// refresh token itself is dead. Only then may the stored session be dropped.
func IsInvalidRefreshToken(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok || retryableStatus(apiErr.Status) {
		return false
	}
	if invalidRefreshCodes[apiErr.Code] {
		return true
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

func retryableStatus(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}

// IsSessionGone reports whether the provider no longer knows the session,
// which sign-out treats as already signed out.
func IsSessionGone(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusNotFound ||
		apiErr.Code == "session_not_found"
}

// apiErrorBody covers both the current and the legacy error shapes.
type apiErrorBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (b apiErrorBody) toAPIError(status int) *APIError {
	e := &APIError{Status: status, Code: b.ErrorCode}
	if e.Code == "" {
		e.Code = b.Error
	}
	switch {
	case b.Msg != "":
		e.Message = b.Msg
	case b.Message != "":
		e.Message = b.Message
	case b.ErrorDescription != "":
		e.Message = b.ErrorDescription
	default:
		e.Message = http.StatusText(status)
	}
	return e
}
