package domain

import (
	"errors"
	"time"
)

// TokenSet carries the tokens issued by the identity provider for one
// authorization-code exchange or refresh.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresAt    int64  `json:"expires_at"` // absolute epoch seconds
}

// UserInfo holds the subject claims returned by the provider's userinfo
// endpoint.
type UserInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Session is the session block handed back to the sign-in pipeline.
//
// While a session record sits in the cache, ExpiresInSeconds holds the
// absolute epoch expiry of the access token; it is rewritten to a relative
// TTL just before the record is returned to a caller. Refresh relies on the
// at-rest form to decide whether the provider needs to be contacted at all.
type Session struct {
	AccessToken      string `json:"accessToken"`
	TokenType        string `json:"tokenType"`
	Scope            string `json:"scope,omitempty"`
	ExpiresInSeconds int64  `json:"expiresInSeconds,omitempty"`
	IDToken          string `json:"idToken,omitempty"`
	RefreshToken     string `json:"refreshToken,omitempty"`
}

// Profile is the raw provider material (token set plus userinfo claims)
// from which display profiles are derived.
type Profile struct {
	TokenSet TokenSet `json:"tokenset"`
	UserInfo UserInfo `json:"userinfo"`
}

// SessionRecord is the cache payload stored under "<accessToken>-info".
type SessionRecord struct {
	FullProfile Profile `json:"fullProfile"`
	Session     Session `json:"session"`
}

// ErrInvalidSessionRecord reports a cached session payload that fails schema
// validation. Payloads are validated on every read so a corrupt or foreign
// value can never be trusted as a session.
var ErrInvalidSessionRecord = errors.New("invalid session record")

// Validate checks the structural invariants of a session record.
func (r *SessionRecord) Validate() error {
	if r.Session.AccessToken == "" || r.FullProfile.TokenSet.AccessToken == "" {
		return ErrInvalidSessionRecord
	}
	if r.Session.ExpiresInSeconds <= 0 {
		return ErrInvalidSessionRecord
	}
	return nil
}

// TTLUntil returns the remaining lifetime of an absolute epoch-seconds
// expiry. Expired or zero expiries yield a non-positive duration, which
// callers must treat as already expired.
func TTLUntil(expiresAt int64) time.Duration {
	if expiresAt == 0 {
		return 0
	}
	return time.Until(time.Unix(expiresAt, 0))
}
