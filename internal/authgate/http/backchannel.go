package http

import (
	"encoding/json"
	"net/http"

	"github.com/cpdevhub/authgate/internal/authgate/cache"
	"github.com/cpdevhub/authgate/pkg/httpx"
	"github.com/cpdevhub/authgate/pkg/jwtx"
	"github.com/cpdevhub/authgate/pkg/slogx"
)

type backchannelLogoutRequest struct {
	LogoutToken string `json:"logout_token"`
}

// BackchannelLogoutHandler godoc
//
//	@Summary		Backchannel Logout
//	@Description	Accepts a logout token from the identity provider and removes every
//	@Description	cached credential derived from the secondary keys it carries.
//	@Description	The token signature is not verified; trust is established at the
//	@Description	transport boundary.
//	@Tags			OIDC
//	@Accept			json
//	@Produce		plain
//	@Param			request	body		backchannelLogoutRequest	true	"logout token"
//	@Success		200		{string}	string						"OK"
//	@Failure		500		{string}	string						"malformed payload or internal error"
//	@Router			/api/oidc/backchannel-logout [post].
func BackchannelLogoutHandler(tc *cache.TokenCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := slogx.FromContext(r.Context())

		var body backchannelLogoutRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.LogoutToken == "" {
			log.Error("no logout_token found in payload")
			httpx.WriteText(w, http.StatusInternalServerError, "No logout_token found in payload")
			return
		}

		claims, err := jwtx.DecodeClaims(body.LogoutToken)
		if err != nil {
			log.Error("error in backchannel logout", "error", err)
			httpx.WriteText(w, http.StatusInternalServerError, "Internal Server Error: "+err.Error())
			return
		}

		keys, ok := jwtx.StringSliceClaim(claims, "secondaryKeys")
		if !ok {
			log.Error("no secondaryKeys array in decoded payload")
			httpx.WriteText(w, http.StatusInternalServerError, "No secondaryKeys array in decoded payload")
			return
		}

		for _, key := range keys {
			token, err := tc.BearerForSecondaryKey(r.Context(), key)
			if err != nil {
				log.Error("error in backchannel logout", "error", err)
				httpx.WriteText(w, http.StatusInternalServerError, "Internal Server Error: "+err.Error())
				return
			}
			if token != "" {
				if err := tc.DeleteCascade(r.Context(), token); err != nil {
					log.Error("error in backchannel logout", "error", err)
					httpx.WriteText(w, http.StatusInternalServerError, "Internal Server Error: "+err.Error())
					return
				}
			}
			// The key itself goes regardless of whether it still indexed
			// a live token.
			if err := tc.DeleteSecondaryKey(r.Context(), key); err != nil {
				log.Error("error in backchannel logout", "error", err)
				httpx.WriteText(w, http.StatusInternalServerError, "Internal Server Error: "+err.Error())
				return
			}
		}

		httpx.WriteText(w, http.StatusOK, "OK")
	}
}
