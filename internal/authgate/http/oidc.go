package http

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/cpdevhub/authgate/internal/authgate/domain"
	"github.com/cpdevhub/authgate/internal/authgate/service"
	"github.com/cpdevhub/authgate/pkg/httpx"
	"github.com/cpdevhub/authgate/pkg/slogx"
)

// SessionHandler serves the browser-facing OIDC session endpoints.
type SessionHandler struct {
	Authenticator *service.Authenticator

	// BaseURL is the app's public base URL, used for cookie scoping when
	// the request carries no Origin header.
	BaseURL string
}

// HandleStart godoc
//
//	@Summary		Begin OIDC Login
//	@Description	Redirects the browser to the identity provider's authorization endpoint
//	@Tags			Session
//	@Success		302	{string}	string	"redirect to the authorization endpoint"
//	@Failure		500	{string}	string	"provider discovery failed"
//	@Router			/api/auth/oidc/start [get].
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.Authenticator.Start(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to start oidc flow", "error", err)
		httpx.WriteText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	httpx.NoCache(w)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleFrame godoc
//
//	@Summary		OIDC Callback
//	@Description	Redeems the authorization code, sets the session cookie and returns
//	@Description	the full profile and session
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	domain.SessionRecord
//	@Failure		401	{string}	string	"authorization response rejected"
//	@Router			/api/auth/oidc/handler/frame [get].
func (h *SessionHandler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		httpx.WriteText(w, http.StatusUnauthorized, "Missing code or state in authorization response")
		return
	}

	rec, err := h.Authenticator.Authenticate(r.Context(), code, state)
	if err != nil {
		slogx.FromContext(r.Context()).Error("oidc authentication failed", "error", err)
		httpx.WriteText(w, http.StatusUnauthorized, "Authentication failed")
		return
	}

	h.setSessionCookie(w, r, rec)
	httpx.WriteJSON(w, http.StatusOK, rec)
}

// HandleRefresh godoc
//
//	@Summary		Refresh Session
//	@Description	Returns the current session, refreshing it against the identity
//	@Description	provider only when it is close to expiry
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	domain.SessionRecord
//	@Failure		401	{string}	string	"no session or refresh rejected"
//	@Router			/api/auth/oidc/refresh [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		httpx.WriteText(w, http.StatusUnauthorized, "Access token not found in Cookie")
		return
	}

	rec, err := h.Authenticator.Refresh(r.Context(), c.Value, "")
	if err != nil {
		if errors.Is(err, service.ErrRefreshFailed) {
			httpx.WriteText(w, http.StatusUnauthorized, "Refresh failed")
			return
		}
		slogx.FromContext(r.Context()).Error("session refresh failed", "error", err)
		httpx.WriteText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.setSessionCookie(w, r, rec)
	httpx.WriteJSON(w, http.StatusOK, rec)
}

// HandleLogout godoc
//
//	@Summary		End Session
//	@Description	Removes every cache entry for the session's access token, revokes it
//	@Description	at the provider when supported, and clears the session cookie
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"status"
//	@Router			/api/auth/oidc/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		if err := h.Authenticator.Logout(r.Context(), c.Value); err != nil {
			// The cookie is cleared regardless; a failed upstream revoke
			// must not keep the browser logged in.
			slogx.FromContext(r.Context()).Error("logout revocation failed", "error", err)
		}
	}

	h.clearSessionCookie(w, r)
	httpx.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// cookieScope derives the cookie domain and secure flag from the request
// Origin, falling back to the configured base URL.
func (h *SessionHandler) cookieScope(r *http.Request) (host string, secure bool) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = h.BaseURL
	}
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	return u.Hostname(), u.Scheme == "https"
}

func (h *SessionHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, rec *domain.SessionRecord) {
	host, secure := h.cookieScope(r)

	c := &http.Cookie{
		Name:     sessionCookieName,
		Value:    rec.Session.AccessToken,
		Domain:   host,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	if exp := rec.FullProfile.TokenSet.ExpiresAt; exp > 0 {
		c.Expires = time.Unix(exp, 0)
	}
	http.SetCookie(w, c)
}

func (h *SessionHandler) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	host, secure := h.cookieScope(r)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Domain:   host,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
