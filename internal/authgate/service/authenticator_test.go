package service_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/cpdevhub/authgate/internal/authgate/cache"
	"github.com/cpdevhub/authgate/internal/authgate/cache/drivers/memory"
	"github.com/cpdevhub/authgate/internal/authgate/domain"
	"github.com/cpdevhub/authgate/internal/authgate/service"
)

const (
	fakeIssuer   = "https://cp.example.com"
	fakeClientID = "test-client"
	fakeSecret   = "test-secret"
	fakeKeyID    = "test-key"
)

// fakeProvider is an OIDC identity provider whose discovery document
// advertises endpoints under the public control-plane host. The
// authenticator must reach them through the proxy host, which points at
// this test server.
type fakeProvider struct {
	t   *testing.T
	srv *httptest.Server
	key *rsa.PrivateKey

	hits          atomic.Int64
	lastGrantType atomic.Value
	revokedToken  atomic.Value
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &fakeProvider{t: t, key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.handleMetadata)
	mux.HandleFunc("GET /keys", p.handleJWKS)
	mux.HandleFunc("POST /oauth/token", p.handleToken)
	mux.HandleFunc("GET /userinfo", p.handleUserinfo)
	mux.HandleFunc("POST /revoke", p.handleRevoke)

	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			p.hits.Add(1)
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

// host returns the test server's host:port, usable as the proxy domain.
func (p *fakeProvider) host() string {
	u, err := url.Parse(p.srv.URL)
	require.NoError(p.t, err)
	return u.Host
}

func (p *fakeProvider) handleMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"issuer":                 fakeIssuer,
		"authorization_endpoint": fakeIssuer + "/authorize",
		"token_endpoint":         fakeIssuer + "/oauth/token",
		"userinfo_endpoint":      fakeIssuer + "/userinfo",
		"jwks_uri":               fakeIssuer + "/keys",
		"revocation_endpoint":    fakeIssuer + "/revoke",
	})
}

func (p *fakeProvider) handleJWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": fakeKeyID,
			"n":   base64.RawURLEncoding.EncodeToString(p.key.N.Bytes()),
			"e":   "AQAB",
		}},
	})
}

func (p *fakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != fakeClientID || pass != fakeSecret {
		http.Error(w, "invalid_client", http.StatusUnauthorized)
		return
	}
	require.NoError(p.t, r.ParseForm())

	grant := r.PostForm.Get("grant_type")
	p.lastGrantType.Store(grant)

	nonce := ""
	switch grant {
	case "authorization_code":
		// The code is the nonce, so the minted ID token echoes the value
		// the client asked for.
		nonce = r.PostForm.Get("code")
	case "refresh_token":
		if r.PostForm.Get("refresh_token") == "" {
			http.Error(w, "invalid_grant", http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "unsupported_grant_type", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "at-" + grant,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": "rt-next",
		"scope":         "openid profile email",
		"id_token":      p.signIDToken(nonce),
	})
}

func (p *fakeProvider) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer at-") {
		http.Error(w, "invalid_token", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"sub":     "user-1",
		"email":   "jamie@example.com",
		"name":    "Jamie Doe",
		"picture": "https://cdn.example.com/jamie.png",
	})
}

func (p *fakeProvider) handleRevoke(w http.ResponseWriter, r *http.Request) {
	require.NoError(p.t, r.ParseForm())
	p.revokedToken.Store(r.PostForm.Get("token"))
	w.WriteHeader(http.StatusOK)
}

func (p *fakeProvider) signIDToken(nonce string) string {
	claims := jwt.MapClaims{
		"iss": fakeIssuer,
		"sub": "user-1",
		"aud": fakeClientID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = fakeKeyID

	signed, err := tok.SignedString(p.key)
	require.NoError(p.t, err)
	return signed
}

func newTestAuthenticator(t *testing.T, p *fakeProvider) (*service.Authenticator, *cache.TokenCache) {
	t.Helper()

	tc := cache.New(memory.NewStore(), memory.NewStore())
	auth, err := service.NewAuthenticator(service.AuthenticatorConfig{
		ClientID:     fakeClientID,
		ClientSecret: fakeSecret,
		MetadataURL:  p.srv.URL + "/.well-known/openid-configuration",
		CallbackURL:  "http://localhost:7007/api/auth/oidc/handler/frame",
	}, service.NewControlPlaneURLs("cp.example.com", p.host()), tc)
	require.NoError(t, err)
	return auth, tc
}

func TestNewAuthenticator(t *testing.T) {
	tc := cache.New(memory.NewStore(), memory.NewStore())

	t.Run("rejects legacy scope option", func(t *testing.T) {
		_, err := service.NewAuthenticator(service.AuthenticatorConfig{
			ClientID:     fakeClientID,
			ClientSecret: fakeSecret,
			MetadataURL:  "https://cp.example.com/.well-known/openid-configuration",
			Scope:        "openid custom",
		}, service.NewControlPlaneURLs("cp.example.com", "cp.proxy.svc"), tc)
		require.ErrorContains(t, err, `"scope"`)
	})

	t.Run("requires control plane hosts", func(t *testing.T) {
		_, err := service.NewAuthenticator(service.AuthenticatorConfig{
			ClientID:     fakeClientID,
			ClientSecret: fakeSecret,
			MetadataURL:  "https://cp.example.com/.well-known/openid-configuration",
		}, service.NewControlPlaneURLs("", ""), tc)
		require.ErrorIs(t, err, service.ErrControlPlaneUnconfigured)
	})

	t.Run("requires client credentials", func(t *testing.T) {
		_, err := service.NewAuthenticator(service.AuthenticatorConfig{
			ClientID: fakeClientID,
		}, service.NewControlPlaneURLs("cp.example.com", "cp.proxy.svc"), tc)
		require.Error(t, err)
	})
}

func TestAuthenticator_Start(t *testing.T) {
	p := newFakeProvider(t)
	auth, _ := newTestAuthenticator(t, p)

	authURL, err := auth.Start(context.Background())
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)

	// The authorization endpoint is browser-facing and must keep the
	// public host, unlike the backend endpoints.
	require.Equal(t, "cp.example.com", u.Host)
	require.Equal(t, "/authorize", u.Path)

	q := u.Query()
	require.Equal(t, fakeClientID, q.Get("client_id"))
	require.Equal(t, "none", q.Get("prompt"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "openid profile email", q.Get("scope"))
	require.NotEmpty(t, q.Get("state"))
	require.NotEmpty(t, q.Get("nonce"))
}

func TestAuthenticator_Authenticate(t *testing.T) {
	p := newFakeProvider(t)
	auth, tc := newTestAuthenticator(t, p)
	ctx := context.Background()

	authURL, err := auth.Start(ctx)
	require.NoError(t, err)
	q, err := url.Parse(authURL)
	require.NoError(t, err)
	state := q.Query().Get("state")
	nonce := q.Query().Get("nonce")

	// The fake provider echoes the code into the ID token nonce claim.
	rec, err := auth.Authenticate(ctx, nonce, state)
	require.NoError(t, err)

	require.Equal(t, "at-authorization_code", rec.Session.AccessToken)
	require.Equal(t, "rt-next", rec.Session.RefreshToken)
	require.Equal(t, "jamie@example.com", rec.FullProfile.UserInfo.Email)
	require.NotEmpty(t, rec.Session.IDToken)

	// Returned expiry is relative seconds; the cached copy keeps the
	// absolute epoch timestamp.
	require.InDelta(t, 3600, rec.Session.ExpiresInSeconds, 10)

	cached, err := tc.Session(ctx, rec.Session.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.InDelta(t, time.Now().Add(time.Hour).Unix(), cached.Session.ExpiresInSeconds, 10)
}

func TestAuthenticator_Authenticate_UnknownState(t *testing.T) {
	p := newFakeProvider(t)
	auth, _ := newTestAuthenticator(t, p)

	before := p.hits.Load()
	_, err := auth.Authenticate(context.Background(), "some-code", "never-issued")
	require.ErrorContains(t, err, "state")
	require.Equal(t, before, p.hits.Load(), "token endpoint must not be contacted")
}

func TestAuthenticator_Authenticate_StateSingleUse(t *testing.T) {
	p := newFakeProvider(t)
	auth, _ := newTestAuthenticator(t, p)
	ctx := context.Background()

	authURL, err := auth.Start(ctx)
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	nonce := u.Query().Get("nonce")

	_, err = auth.Authenticate(ctx, nonce, state)
	require.NoError(t, err)

	_, err = auth.Authenticate(ctx, nonce, state)
	require.ErrorContains(t, err, "state")
}

func TestAuthenticator_Refresh_ServedFromCache(t *testing.T) {
	p := newFakeProvider(t)
	auth, tc := newTestAuthenticator(t, p)
	ctx := context.Background()

	seedSession(t, tc, "cookie-token", time.Now().Add(30*time.Minute))

	rec, err := auth.Refresh(ctx, "cookie-token", "rt-old")
	require.NoError(t, err)
	require.Equal(t, "cookie-token", rec.Session.AccessToken)
	require.InDelta(t, 30*60, rec.Session.ExpiresInSeconds, 10)

	require.Zero(t, p.hits.Load(), "provider must not be contacted when the session is fresh")
}

func TestAuthenticator_Refresh_Grant(t *testing.T) {
	p := newFakeProvider(t)
	auth, tc := newTestAuthenticator(t, p)
	ctx := context.Background()

	// Only two minutes left, inside the refresh window. The refresh token
	// comes out of the cached session record.
	seedSession(t, tc, "cookie-token", time.Now().Add(2*time.Minute))

	rec, err := auth.Refresh(ctx, "cookie-token", "")
	require.NoError(t, err)
	require.Equal(t, "at-refresh_token", rec.Session.AccessToken)
	require.Equal(t, "refresh_token", p.lastGrantType.Load())

	// The stale token's cache entries are gone, the new session is cached.
	old, err := tc.Session(ctx, "cookie-token")
	require.NoError(t, err)
	require.Nil(t, old)

	fresh, err := tc.Session(ctx, "at-refresh_token")
	require.NoError(t, err)
	require.NotNil(t, fresh)
}

func TestAuthenticator_Refresh_NoRefreshToken(t *testing.T) {
	p := newFakeProvider(t)
	auth, _ := newTestAuthenticator(t, p)

	_, err := auth.Refresh(context.Background(), "", "")
	require.ErrorIs(t, err, service.ErrRefreshFailed)
}

func TestAuthenticator_Logout(t *testing.T) {
	p := newFakeProvider(t)
	auth, tc := newTestAuthenticator(t, p)
	ctx := context.Background()

	seedSession(t, tc, "cookie-token", time.Now().Add(time.Hour))

	require.NoError(t, auth.Logout(ctx, "cookie-token"))

	rec, err := tc.Session(ctx, "cookie-token")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.Equal(t, "cookie-token", p.revokedToken.Load())
}

func seedSession(t *testing.T, tc *cache.TokenCache, token string, expiry time.Time) {
	t.Helper()
	rec := &domain.SessionRecord{
		FullProfile: domain.Profile{
			TokenSet: domain.TokenSet{
				AccessToken:  token,
				TokenType:    "bearer",
				RefreshToken: "rt-old",
				ExpiresAt:    expiry.Unix(),
			},
			UserInfo: domain.UserInfo{Subject: "user-1", Email: "jamie@example.com"},
		},
		Session: domain.Session{
			AccessToken:      token,
			TokenType:        "bearer",
			RefreshToken:     "rt-old",
			ExpiresInSeconds: expiry.Unix(),
		},
	}
	require.NoError(t, tc.PutSession(context.Background(), token, rec, time.Until(expiry)))
}
