package http

import (
	"io"
	"net/http"
	"time"

	"github.com/cpdevhub/authgate/internal/authgate/service"
	"github.com/cpdevhub/authgate/pkg/httpx"
	"github.com/cpdevhub/authgate/pkg/slogx"
)

// wellKnownAPIPath is served locally and proxied verbatim to the internal
// control-plane host.
const wellKnownAPIPath = "/.well-known/openid-configuration"

// WellKnownHandler godoc
//
//	@Summary		OIDC Discovery Document
//	@Description	Proxies the OpenID Connect discovery document from the internal
//	@Description	control-plane host, forwarding the public hostname in x-cp-host
//	@Tags			OIDC
//	@Produce		json
//	@Success		200	{object}	map[string]any	"discovery document"
//	@Failure		502	{string}	string			"upstream unreachable"
//	@Router			/.well-known/openid-configuration [get].
func WellKnownHandler(cp service.ControlPlaneURLs, client *http.Client) http.HandlerFunc {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, cp.Proxy+wellKnownAPIPath, nil)
		if err != nil {
			httpx.WriteText(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		// The internal host routes by this header back to the tenant's
		// public control plane.
		req.Header.Set("x-cp-host", cp.Host)

		resp, err := client.Do(req)
		if err != nil {
			slogx.FromContext(r.Context()).Error("well-known proxy request failed", "error", err)
			httpx.WriteText(w, http.StatusBadGateway, "Bad Gateway")
			return
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}
}
