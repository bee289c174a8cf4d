package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	CPURL    string // Required for OIDC routes: public control-plane host
	CPDomain string // Required for OIDC routes: internal proxy host

	ClientID                string        // OIDC client credentials
	ClientSecret            string        //
	MetadataURL             string        // OIDC discovery document URL
	CallbackURL             string        // Optional: authorization redirect target
	TokenEndpointAuthMethod string        // Optional: client_secret_basic or client_secret_post (default: client_secret_basic)
	TokenSignedResponseAlg  string        // Optional: expected ID-token alg (default: RS256)
	Prompt                  string        // Optional: authorization prompt, "auto" suppresses it (default: none)
	ProviderTimeout         time.Duration // Optional: identity-provider HTTP timeout (default: 10s)
	Scope                   string        // Legacy option: startup fails when set

	EnabledProviders []string // Auth providers to activate (comma-separated env)
	IDMJWTAPIPath    string   // IDM exchange path on the proxy host

	CacheDriver  string // Persistent cache driver (sqlite, redis, memory) (default: sqlite)
	DatabaseFile string // SQLite database file (default: ./authgate.db)
	RedisAddr    string // Redis address (default: localhost:6379)
	RedisPass    string // Optional: redis password
	RedisDB      int    // Optional: redis database number

	BaseURL              string        // App base URL for cookie scoping (default: http://localhost:7007)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 7007)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		CPURL:    os.Getenv("CP_URL"),
		CPDomain: os.Getenv("CP_DOMAIN"),

		ClientID:                os.Getenv("AUTHGATE_CLIENT_ID"),
		ClientSecret:            os.Getenv("AUTHGATE_CLIENT_SECRET"),
		MetadataURL:             os.Getenv("AUTHGATE_METADATA_URL"),
		CallbackURL:             os.Getenv("AUTHGATE_CALLBACK_URL"),
		TokenEndpointAuthMethod: getEnvOrDefault("AUTHGATE_TOKEN_AUTH_METHOD", "client_secret_basic"),
		TokenSignedResponseAlg:  getEnvOrDefault("AUTHGATE_TOKEN_SIGNED_RESPONSE_ALG", "RS256"),
		Prompt:                  getEnvOrDefault("AUTHGATE_PROMPT", "none"),
		ProviderTimeout:         getEnvDurationOrDefault("AUTHGATE_TIMEOUT", 10*time.Second),
		Scope:                   os.Getenv("AUTHGATE_SCOPE"), // Rejected at startup when set

		EnabledProviders: splitList(os.Getenv("ENABLE_AUTH_PROVIDERS")),
		IDMJWTAPIPath:    getEnvOrDefault("IDM_JWT_API_PATH", "/idm/v1/oauth2/jwt"),

		CacheDriver:  getEnvOrDefault("CACHE_DRIVER", "sqlite"),
		DatabaseFile: getEnvOrDefault("CACHE_DATABASE_FILE", "authgate.db"),
		RedisAddr:    getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:      getEnvIntOrDefault("REDIS_DB", 0),

		BaseURL:              getEnvOrDefault("APP_BASE_URL", "http://localhost:7007"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 7007),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
