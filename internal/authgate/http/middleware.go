package http

import (
	"errors"
	"net/http"

	"github.com/cpdevhub/authgate/internal/authgate/service"
	"github.com/cpdevhub/authgate/pkg/httpx"
	"github.com/cpdevhub/authgate/pkg/slogx"
)

const (
	// oauthHeader is the custom header API clients use to present their
	// control-plane token; it wins over Authorization when both are set.
	oauthHeader = "X-TIBCO-OAUTH"

	// sessionCookieName holds the browser session's access token.
	sessionCookieName = "cp-token"
)

// ExchangeMiddleware translates inbound credentials into downstream IDM
// JWTs before the request reaches any handler.
//
// Requests without a bearer token pass through unauthenticated. Internal
// plugin-to-plugin tokens bypass the exchange entirely. Ordinary JWTs fall
// back to the session cookie for the token to exchange. Only requests whose
// header carried a CIC token get their Authorization header rewritten; the
// cookie-fallback path still warms the cache for later calls.
func ExchangeMiddleware(svc *service.ExchangeService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			token := httpx.BearerToken(req.Header.Get(oauthHeader))
			if token == "" {
				token = httpx.BearerToken(req.Header.Get("Authorization"))
			}
			if token == "" {
				next.ServeHTTP(w, req)
				return
			}

			kind, err := service.ClassifyCredential(token)
			if err != nil {
				httpx.WriteText(w, http.StatusUnauthorized, "Unable to decode JWT token")
				return
			}

			switch kind {
			case service.CredentialInternalPlugin:
				next.ServeHTTP(w, req)
				return
			case service.CredentialOpaque:
				c, err := req.Cookie(sessionCookieName)
				if err != nil || c.Value == "" {
					httpx.WriteText(w, http.StatusUnauthorized, "Access token not found in Cookie")
					return
				}
				token = c.Value
			}

			jwt, err := svc.JWTForToken(req.Context(), token)
			if err != nil {
				writeExchangeError(w, req, err)
				return
			}

			if kind == service.CredentialExchangeToken {
				req.Header.Set("Authorization", "Bearer "+jwt)
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeExchangeError(w http.ResponseWriter, req *http.Request, err error) {
	log := slogx.FromContext(req.Context())

	var statusErr *service.IDMStatusError
	switch {
	case errors.As(err, &statusErr):
		log.Error("idm exchange rejected token",
			"status", statusErr.StatusCode, "body", statusErr.Body)
		httpx.WriteText(w, http.StatusUnauthorized, "Invalid CIC token")
	case errors.Is(err, service.ErrIDMResponse):
		log.Error("idm exchange returned incomplete response", "error", err)
		httpx.WriteText(w, http.StatusUnauthorized, "NO JWT found in IDM response")
	default:
		log.Error("error in getting jwt from idm", "error", err)
		httpx.WriteText(w, http.StatusUnauthorized, "Error in getting JWT from IDM")
	}
}
