package service

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCookie reports a request whose bearer token demands the
	// session cookie, but no cp-token cookie was sent.
	ErrMissingCookie = errors.New("access token not found in cookie")

	// ErrUndecodableToken reports a bearer token that is neither a CIC
	// token nor a decodable JWT.
	ErrUndecodableToken = errors.New("unable to decode jwt token")

	// ErrIDMResponse reports an IDM exchange response missing any of the
	// required jwt / secondaryKey / expiryTime fields.
	ErrIDMResponse = errors.New("no jwt found in idm response")

	// ErrRefreshFailed reports a refresh attempt without a usable refresh
	// token, or one the provider rejected.
	ErrRefreshFailed = errors.New("refresh failed")

	// ErrControlPlaneUnconfigured reports missing CP_URL / CP_DOMAIN
	// environment configuration.
	ErrControlPlaneUnconfigured = errors.New("CP_URL or CP_DOMAIN not found as an environmental variable")
)

// IDMStatusError reports a non-2xx response from the IDM exchange endpoint.
// The body is preserved for logging; callers surface it as a 401.
type IDMStatusError struct {
	StatusCode int
	Body       string
}

func (e *IDMStatusError) Error() string {
	return fmt.Sprintf("idm exchange failed: HTTP %d", e.StatusCode)
}
