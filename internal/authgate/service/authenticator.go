package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/cpdevhub/authgate/internal/authgate/cache"
	"github.com/cpdevhub/authgate/internal/authgate/domain"
	"github.com/cpdevhub/authgate/pkg/cryptox"
)

const (
	// defaultHTTPTimeout bounds every call to the identity provider.
	defaultHTTPTimeout = 10 * time.Second

	// stateTTL is how long an authorization attempt's state/nonce pairing
	// stays redeemable.
	stateTTL = 10 * time.Minute

	// refreshSkipWindow is the remaining session lifetime above which a
	// refresh is answered from cache without contacting the provider.
	refreshSkipWindow = 5 * time.Minute
)

// oidcScopes are always requested; the legacy per-config scope override is
// rejected at construction.
var oidcScopes = []string{"openid", "profile", "email"}

// AuthenticatorConfig configures the OIDC relying-party client.
type AuthenticatorConfig struct {
	ClientID     string
	ClientSecret string
	MetadataURL  string
	CallbackURL  string

	// TokenEndpointAuthMethod is client_secret_basic (default) or
	// client_secret_post.
	TokenEndpointAuthMethod string

	// TokenSignedResponseAlg is the expected ID-token signing algorithm
	// (default RS256).
	TokenSignedResponseAlg string

	// Prompt is sent on the authorization redirect. Defaults to "none";
	// the explicit value "auto" suppresses the parameter entirely.
	Prompt string

	// Timeout bounds HTTP calls to the provider (default 10s).
	Timeout time.Duration

	// Scope is the legacy configuration key. Setting it is an error.
	Scope string
}

func (c *AuthenticatorConfig) normalize() error {
	if c.Scope != "" {
		return errors.New(`the oidc provider no longer supports the "scope" configuration option, use "additionalScopes" instead`)
	}
	if c.ClientID == "" || c.ClientSecret == "" || c.MetadataURL == "" {
		return errors.New("clientId, clientSecret and metadataUrl are required")
	}
	if c.TokenEndpointAuthMethod == "" {
		c.TokenEndpointAuthMethod = "client_secret_basic"
	}
	if c.TokenSignedResponseAlg == "" {
		c.TokenSignedResponseAlg = "RS256"
	}
	if c.Prompt == "" {
		c.Prompt = "none"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultHTTPTimeout
	}
	return nil
}

// providerMetadata is the subset of the OIDC discovery document this service
// uses. Every backend-facing endpoint is rewritten from the public host to
// the internal proxy host before use, because discovery advertises URLs the
// backend network cannot reach.
type providerMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
	RegistrationEndpoint  string `json:"registration_endpoint"`
	RevocationEndpoint    string `json:"revocation_endpoint"`
}

type providerClient struct {
	metadata providerMetadata
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// Authenticator drives the OIDC authorization-code flow against the
// control-plane identity provider. Discovery is lazy and performed once.
type Authenticator struct {
	cfg   AuthenticatorConfig
	cp    ControlPlaneURLs
	cache *cache.TokenCache

	client *http.Client

	mu   sync.Mutex
	prov *providerClient
}

// NewAuthenticator validates configuration and returns an authenticator.
// Missing control-plane hosts are fatal here, matching the provider module's
// initialization contract.
func NewAuthenticator(cfg AuthenticatorConfig, cp ControlPlaneURLs, tc *cache.TokenCache) (*Authenticator, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if !cp.Configured() {
		return nil, ErrControlPlaneUnconfigured
	}

	return &Authenticator{
		cfg:    cfg,
		cp:     cp,
		cache:  tc,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// provider performs (or returns the memoized result of) OIDC discovery.
func (a *Authenticator) provider(ctx context.Context) (*providerClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.prov != nil {
		return a.prov, nil
	}

	md, err := a.discover(ctx)
	if err != nil {
		return nil, err
	}

	authStyle := oauth2.AuthStyleInHeader
	if a.cfg.TokenEndpointAuthMethod == "client_secret_post" {
		authStyle = oauth2.AuthStyleInParams
	}

	oauthCfg := &oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		RedirectURL:  a.cfg.CallbackURL,
		Scopes:       oidcScopes,
		Endpoint: oauth2.Endpoint{
			// The authorization endpoint is browser-facing and keeps its
			// public host; only backend calls go through the proxy.
			AuthURL:   md.AuthorizationEndpoint,
			TokenURL:  md.TokenEndpoint,
			AuthStyle: authStyle,
		},
	}

	// The key set outlives any single request, so bind it to a background
	// context carrying our bounded HTTP client.
	keySet := oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), a.client), md.JWKSURI)
	verifier := oidc.NewVerifier(md.Issuer, keySet, &oidc.Config{
		ClientID:             a.cfg.ClientID,
		SupportedSigningAlgs: []string{a.cfg.TokenSignedResponseAlg},
	})

	a.prov = &providerClient{metadata: md, oauth: oauthCfg, verifier: verifier}
	return a.prov, nil
}

func (a *Authenticator) discover(ctx context.Context) (providerMetadata, error) {
	var md providerMetadata

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.MetadataURL, nil)
	if err != nil {
		return md, fmt.Errorf("build discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return md, fmt.Errorf("oidc discovery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return md, fmt.Errorf("oidc discovery: HTTP %d from %s", resp.StatusCode, a.cfg.MetadataURL)
	}
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return md, fmt.Errorf("decode discovery document: %w", err)
	}

	// Substitute the public host with the internal proxy host on every
	// endpoint the backend will call itself.
	for _, ep := range []*string{
		&md.TokenEndpoint,
		&md.UserinfoEndpoint,
		&md.JWKSURI,
		&md.RegistrationEndpoint,
		&md.RevocationEndpoint,
	} {
		*ep = strings.ReplaceAll(*ep, a.cp.URL, a.cp.Proxy)
	}

	return md, nil
}

// Start builds the authorization redirect URL for a new authentication
// attempt. The request nonce is cached under the state value so the callback
// can validate the ID token minted for this attempt.
func (a *Authenticator) Start(ctx context.Context) (authURL string, err error) {
	p, err := a.provider(ctx)
	if err != nil {
		return "", err
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}
	nonce, err := cryptox.GenerateNonce()
	if err != nil {
		return "", err
	}
	if err := a.cache.PutNonce(ctx, state, nonce, stateTTL); err != nil {
		return "", err
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline, // required to receive a refresh token
		oauth2.SetAuthURLParam("nonce", nonce),
	}
	if a.cfg.Prompt != "auto" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", a.cfg.Prompt))
	}

	return p.oauth.AuthCodeURL(state, opts...), nil
}

// Authenticate redeems an authorization code: token exchange, ID-token
// verification against the rewritten JWKS endpoint (including the nonce
// cached at Start), userinfo fetch, and session-record caching under
// "<accessToken>-info".
//
// The returned record carries Session.ExpiresInSeconds as a relative TTL;
// the cached copy keeps the absolute expiry.
func (a *Authenticator) Authenticate(ctx context.Context, code, state string) (*domain.SessionRecord, error) {
	p, err := a.provider(ctx)
	if err != nil {
		return nil, err
	}

	nonce, err := a.cache.TakeNonce(ctx, state)
	if err != nil {
		return nil, err
	}
	if nonce == "" {
		return nil, errors.New("unknown or expired authorization state")
	}

	tok, err := p.oauth.Exchange(oidc.ClientContext(ctx, a.client), code)
	if err != nil {
		return nil, fmt.Errorf("authorization code exchange: %w", err)
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, errors.New("token response missing id_token")
	}
	idToken, err := p.verifier.Verify(oidc.ClientContext(ctx, a.client), rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	if idToken.Nonce != nonce {
		return nil, errors.New("id token nonce mismatch")
	}

	userinfo, err := a.fetchUserinfo(ctx, p, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	return a.storeSession(ctx, p, tok, rawIDToken, userinfo)
}

// Refresh returns the current session. When the cookie's cached session
// record still has more than refreshSkipWindow of life left it is returned
// directly, without any call to the provider. Otherwise the refresh grant
// runs, the stale token's cache entries are cascaded away, and a fresh
// record is cached.
func (a *Authenticator) Refresh(ctx context.Context, cookieToken, refreshToken string) (*domain.SessionRecord, error) {
	var cached *domain.SessionRecord
	if cookieToken != "" {
		rec, err := a.cache.Session(ctx, cookieToken)
		if err != nil {
			return nil, err
		}
		cached = rec
		if rec != nil && rec.Session.ExpiresInSeconds > 0 {
			ttl := domain.TTLUntil(rec.Session.ExpiresInSeconds)
			if ttl > refreshSkipWindow {
				out := *rec
				out.Session.ExpiresInSeconds = int64(ttl.Seconds())
				return &out, nil
			}
		}
	}

	p, err := a.provider(ctx)
	if err != nil {
		return nil, err
	}

	if refreshToken == "" && cached != nil {
		refreshToken = cached.FullProfile.TokenSet.RefreshToken
	}
	if refreshToken == "" {
		return nil, ErrRefreshFailed
	}

	src := p.oauth.TokenSource(oidc.ClientContext(ctx, a.client), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil || tok.AccessToken == "" {
		return nil, ErrRefreshFailed
	}

	userinfo, err := a.fetchUserinfo(ctx, p, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	if err := a.cache.DeleteCascade(ctx, cookieToken); err != nil {
		return nil, err
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	return a.storeSession(ctx, p, tok, rawIDToken, userinfo)
}

// Logout removes every cache entry derived from the access token and, when
// the provider advertises a revocation endpoint, revokes the token.
func (a *Authenticator) Logout(ctx context.Context, accessToken string) error {
	// The local session dies even when the provider is unreachable.
	if err := a.cache.DeleteCascade(ctx, accessToken); err != nil {
		return err
	}

	if accessToken == "" {
		return nil
	}

	p, err := a.provider(ctx)
	if err != nil {
		return err
	}
	if p.metadata.RevocationEndpoint == "" {
		return nil
	}
	return a.revoke(ctx, p, accessToken)
}

func (a *Authenticator) revoke(ctx context.Context, p *providerClient, token string) error {
	form := url.Values{"token": {token}}
	if a.cfg.TokenEndpointAuthMethod == "client_secret_post" {
		form.Set("client_id", a.cfg.ClientID)
		form.Set("client_secret", a.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.metadata.RevocationEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if a.cfg.TokenEndpointAuthMethod != "client_secret_post" {
		req.SetBasicAuth(url.QueryEscape(a.cfg.ClientID), url.QueryEscape(a.cfg.ClientSecret))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revoke token: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (a *Authenticator) fetchUserinfo(ctx context.Context, p *providerClient, accessToken string) (domain.UserInfo, error) {
	var info domain.UserInfo

	if p.metadata.UserinfoEndpoint == "" {
		return info, errors.New("oidc provider must expose a userinfo_endpoint in the metadata response")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.metadata.UserinfoEndpoint, nil)
	if err != nil {
		return info, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return info, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("fetch userinfo: HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("decode userinfo: %w", err)
	}
	return info, nil
}

// storeSession caches the session record under "<accessToken>-info" with a
// TTL matching the access token's remaining life, then returns a copy whose
// ExpiresInSeconds has been rewritten to that relative TTL.
func (a *Authenticator) storeSession(ctx context.Context, _ *providerClient, tok *oauth2.Token, rawIDToken string, userinfo domain.UserInfo) (*domain.SessionRecord, error) {
	var expiresAt int64
	if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry.Unix()
	}

	scope, _ := tok.Extra("scope").(string)
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}

	rec := &domain.SessionRecord{
		FullProfile: domain.Profile{
			TokenSet: domain.TokenSet{
				AccessToken:  tok.AccessToken,
				TokenType:    tokenType,
				IDToken:      rawIDToken,
				RefreshToken: tok.RefreshToken,
				Scope:        scope,
				ExpiresAt:    expiresAt,
			},
			UserInfo: userinfo,
		},
		Session: domain.Session{
			AccessToken:      tok.AccessToken,
			TokenType:        tokenType,
			Scope:            scope,
			ExpiresInSeconds: expiresAt,
			IDToken:          rawIDToken,
			RefreshToken:     tok.RefreshToken,
		},
	}

	ttl := domain.TTLUntil(expiresAt)
	if err := a.cache.PutSession(ctx, tok.AccessToken, rec, ttl); err != nil {
		return nil, err
	}

	out := *rec
	out.Session.ExpiresInSeconds = int64(ttl.Seconds())
	return &out, nil
}
