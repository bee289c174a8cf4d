package http

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/cpdevhub/authgate/internal/authgate/cache"
	"github.com/cpdevhub/authgate/internal/authgate/service"
	"github.com/cpdevhub/authgate/pkg/httpx"
	"github.com/cpdevhub/authgate/pkg/slogx"

	_ "github.com/cpdevhub/authgate/api/authgate" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// controlPlaneProvider is the auth-provider name that activates the
// backchannel logout route and the IDM exchange middleware.
const controlPlaneProvider = "tibco-control-plane"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	cp           service.ControlPlaneURLs
	cache        *cache.TokenCache
	baseURL      string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	enabledProviders []string

	// Authenticator is nil when the control-plane env is not configured;
	// the session routes are then not registered.
	Authenticator   *service.Authenticator
	ExchangeService *service.ExchangeService
}

func NewRouter(
	cp service.ControlPlaneURLs,
	tc *cache.TokenCache,
	baseURL, buildVersion string,
	enabledProviders []string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:              http.NewServeMux(),
		cp:               cp,
		cache:            tc,
		baseURL:          baseURL,
		buildVersion:     buildVersion,
		startTime:        time.Now(),
		enabledProviders: enabledProviders,
		logger:           logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) providerEnabled(name string) bool {
	return slices.Contains(r.enabledProviders, name)
}

func (r *Router) ApplyRoutes() {
	r.registerSystem()
	r.registerWellKnown()
	r.registerSession()
	r.registerBackchannel()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			AuthGate API
//	@version		0.1.0
//	@description	OIDC session gateway for the control-plane identity provider: session
//	@description	endpoints for the browser, transparent downstream-JWT exchange for API
//	@description	calls, and backchannel logout handling.
//
//	@contact.name	CP DevHub Team
//	@contact.url	https://github.com/cpdevhub/authgate
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:7007
//	@BasePath	/
//
//	@schemes	http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /health",
		httpx.Chain(HealthHandler(),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.cache),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerWellKnown() {
	if !r.cp.Configured() {
		r.logger.Error("CP_URL or CP_DOMAIN not found as an environmental variable, .well-known api is not registered")
		return
	}

	r.Mux.Handle("GET "+wellKnownAPIPath,
		httpx.Chain(WellKnownHandler(r.cp, nil),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSession() {
	if r.Authenticator == nil {
		return
	}

	h := &SessionHandler{
		Authenticator: r.Authenticator,
		BaseURL:       r.baseURL,
	}

	r.Mux.Handle("GET /api/auth/oidc/start",
		httpx.Chain(http.HandlerFunc(h.HandleStart),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /api/auth/oidc/handler/frame",
		httpx.Chain(http.HandlerFunc(h.HandleFrame),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/oidc/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/oidc/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerBackchannel() {
	if !r.providerEnabled(controlPlaneProvider) {
		return
	}

	r.Mux.Handle("POST /api/oidc/backchannel-logout",
		httpx.Chain(BackchannelLogoutHandler(r.cache),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// The exchange middleware runs ahead of every route, so any proxied
	// call carries a downstream JWT by the time it is forwarded.
	if r.ExchangeService != nil {
		r.middlewares = append(r.middlewares, ExchangeMiddleware(r.ExchangeService))
	}
}
