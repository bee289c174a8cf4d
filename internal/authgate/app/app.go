package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cpdevhub/authgate/internal/authgate/cache"
	"github.com/cpdevhub/authgate/internal/authgate/cache/drivers/memory"
	redisdriver "github.com/cpdevhub/authgate/internal/authgate/cache/drivers/redis"
	"github.com/cpdevhub/authgate/internal/authgate/cache/drivers/sqlite"
	httpapi "github.com/cpdevhub/authgate/internal/authgate/http"
	"github.com/cpdevhub/authgate/internal/authgate/service"
	"github.com/cpdevhub/authgate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	tokenCache *cache.TokenCache
	cp         service.ControlPlaneURLs

	// Services
	authenticator       *service.Authenticator // nil when the control plane is unconfigured
	exchangeService     *service.ExchangeService
	housekeepingService *service.HousekeepingService // nil for drivers with native expiry

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initCache(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.tokenCache.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}

	app.logger.Info("authgate starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authgate...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}

	if err := app.tokenCache.Close(); err != nil {
		app.logger.Error("error closing token cache", "error", err)
		return err
	}

	app.logger.Info("authgate stopped")
	return nil
}

// initCache builds the persistent cache tier from the configured driver and
// pairs it with the in-process short-circuit tier.
func (app *Application) initCache() error {
	var persistent cache.Store

	switch app.cfg.CacheDriver {
	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize cache database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply cache migrations: %w", err)
		}
		app.logger.Info("cache database migrations applied successfully")

		app.housekeepingService = service.NewHousekeepingService(
			db,
			app.logger,
			app.cfg.HousekeepingInterval,
		)
		persistent = db

	case "redis":
		st, err := redisdriver.NewStore(context.Background(), redisdriver.Config{
			Addr:      app.cfg.RedisAddr,
			Password:  app.cfg.RedisPass,
			DB:        app.cfg.RedisDB,
			KeyPrefix: "authgate:",
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		persistent = st

	case "memory":
		// Ephemeral mode: sessions do not survive a restart.
		persistent = memory.NewStore()

	default:
		return fmt.Errorf("unknown cache driver %q", app.cfg.CacheDriver)
	}

	app.tokenCache = cache.New(persistent, memory.NewStore())
	return nil
}

// initServices initializes the OIDC authenticator and the IDM exchange
// service. A missing control plane disables both with a logged error; a
// legacy scope option is a hard startup failure.
func (app *Application) initServices() error {
	if app.cfg.Scope != "" {
		// Surface the misconfiguration immediately rather than on the
		// first login attempt.
		_, err := service.NewAuthenticator(service.AuthenticatorConfig{Scope: app.cfg.Scope},
			service.ControlPlaneURLs{}, app.tokenCache)
		return err
	}

	app.cp = service.NewControlPlaneURLs(app.cfg.CPURL, app.cfg.CPDomain)
	if !app.cp.Configured() {
		app.logger.Error("CP_URL or CP_DOMAIN not found as an environmental variable, oidc routes are not registered")
		return nil
	}

	app.exchangeService = &service.ExchangeService{
		Cache:   app.tokenCache,
		BaseURL: app.cp.Proxy,
		APIPath: app.cfg.IDMJWTAPIPath,
	}

	if app.cfg.ClientID == "" || app.cfg.ClientSecret == "" || app.cfg.MetadataURL == "" {
		app.logger.Error("oidc client credentials not configured, session routes are not registered")
		return nil
	}

	auth, err := service.NewAuthenticator(service.AuthenticatorConfig{
		ClientID:                app.cfg.ClientID,
		ClientSecret:            app.cfg.ClientSecret,
		MetadataURL:             app.cfg.MetadataURL,
		CallbackURL:             app.cfg.CallbackURL,
		TokenEndpointAuthMethod: app.cfg.TokenEndpointAuthMethod,
		TokenSignedResponseAlg:  app.cfg.TokenSignedResponseAlg,
		Prompt:                  app.cfg.Prompt,
		Timeout:                 app.cfg.ProviderTimeout,
	}, app.cp, app.tokenCache)
	if err != nil {
		return fmt.Errorf("failed to initialize oidc authenticator: %w", err)
	}
	app.authenticator = auth

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.cp,
		app.tokenCache,
		app.cfg.BaseURL,
		BuildVersion,
		app.cfg.EnabledProviders,
		app.logger,
	)

	// Wire services to router
	router.Authenticator = app.authenticator // nil when the control plane is unconfigured
	router.ExchangeService = app.exchangeService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
