package http

import (
	"net/http"
	"time"

	"github.com/cpdevhub/authgate/internal/authgate/cache"
	"github.com/cpdevhub/authgate/pkg/httpx"
)

// HealthChecks reports per-dependency readiness status.
type HealthChecks struct {
	Cache string `json:"cache"`
}

// HealthResponse is the body of the system probe endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthHandler godoc
//
//	@Summary		Health Check Endpoint
//	@Description	Minimal health endpoint kept for compatibility with existing deployment probes
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"status"
//	@Router			/health [get].
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}

// LivezHandler godoc
//
//	@Summary		Liveness Probe
//	@Description	Returns basic service health status, uptime, and version information
//	@Description	This endpoint always returns 200 OK if the service is running
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Probe
//	@Description	Returns service health status including the persistent token cache
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, tc *cache.TokenCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &HealthChecks{Cache: "ok"}
		status := "ok"
		code := http.StatusOK

		if err := tc.Ping(r.Context()); err != nil {
			checks.Cache = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
