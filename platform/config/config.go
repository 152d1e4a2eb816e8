// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Data backends for profile and admin-grant lookups.
const (
	DataBackendPostgREST = "postgrest"
	DataBackendPostgres  = "postgres"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetStaticDir() string
}

// IdentityConfig provides settings for the hosted identity provider.
type IdentityConfig interface {
	GetIdentityURL() string
	GetIdentityAnonKey() string
	GetIdentityJWTSecret() string
	GetAppBaseURL() string
	GetOAuthDefaultProvider() string
}

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// DataConfig selects and configures the row lookup backend.
type DataConfig interface {
	DatabaseConfig
	GetDataBackend() string
	GetRestURL() string
	GetIdentityAnonKey() string
}

// RedisConfig provides redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// RefreshConfig provides settings for the token refresh worker.
type RefreshConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetRefreshMargin() time.Duration
}

// CookieConfig provides settings for the browser session cookie.
type CookieConfig interface {
	GetSessionCookieName() string
	GetSessionCookieDomain() string
	GetSessionCookiePath() string
	GetSessionCookieSecure() bool
	GetSessionCookieSameSite() http.SameSite
	GetSessionStorageTTL() time.Duration
}

// SessionConfig provides settings for the in-process session registry.
type SessionConfig interface {
	GetSessionIdleTTL() time.Duration
	GetSessionStorageTTL() time.Duration
}

// GuardConfig provides settings for the route guard.
type GuardConfig interface {
	GetRoutesFile() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	AppBaseURL            string
	IdentityURL           string
	IdentityAnonKey       string
	IdentityJWTSecret     string
	OAuthDefaultProvider  string
	DataBackend           string
	RestURL               string
	DatabaseURL           string
	RedisURL              string
	RedisTLSInsecure      bool
	SessionCookieName     string
	SessionCookieDomain   string
	SessionCookiePath     string
	SessionCookieSecure   bool
	SessionCookieSameSite http.SameSite
	SessionIdleTTL        time.Duration
	SessionStorageTTL     time.Duration
	RefreshMargin         time.Duration
	AsynqQueueName        string
	AsynqConcurrency      int
	RoutesFile            string
	StaticDir             string
	CORSOrigins           []string
	CORSAllowCreds        bool
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) GetStaticDir() string     { return c.StaticDir }

// IdentityConfig implementation
func (c *Config) GetIdentityURL() string          { return c.IdentityURL }
func (c *Config) GetIdentityAnonKey() string      { return c.IdentityAnonKey }
func (c *Config) GetIdentityJWTSecret() string    { return c.IdentityJWTSecret }
func (c *Config) GetAppBaseURL() string           { return c.AppBaseURL }
func (c *Config) GetOAuthDefaultProvider() string { return c.OAuthDefaultProvider }

// DataConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }
func (c *Config) GetDataBackend() string { return c.DataBackend }
func (c *Config) GetRestURL() string     { return c.RestURL }

// RefreshConfig implementation
func (c *Config) GetRedisURL() string             { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool       { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string       { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int        { return c.AsynqConcurrency }
func (c *Config) GetRefreshMargin() time.Duration { return c.RefreshMargin }

// CookieConfig implementation
func (c *Config) GetSessionCookieName() string            { return c.SessionCookieName }
func (c *Config) GetSessionCookieDomain() string          { return c.SessionCookieDomain }
func (c *Config) GetSessionCookiePath() string            { return c.SessionCookiePath }
func (c *Config) GetSessionCookieSecure() bool            { return c.SessionCookieSecure }
func (c *Config) GetSessionCookieSameSite() http.SameSite { return c.SessionCookieSameSite }

// SessionConfig implementation
func (c *Config) GetSessionIdleTTL() time.Duration    { return c.SessionIdleTTL }
func (c *Config) GetSessionStorageTTL() time.Duration { return c.SessionStorageTTL }

// GuardConfig implementation
func (c *Config) GetRoutesFile() string { return c.RoutesFile }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "development")

	cookieSecure := strings.EqualFold(getEnv("SESSION_COOKIE_SECURE", ""), "true")
	if getEnv("SESSION_COOKIE_SECURE", "") == "" {
		cookieSecure = strings.EqualFold(env, "production")
	}

	cfg := &Config{
		Env:                   env,
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		AppBaseURL:            strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:8080"), "/"),
		IdentityURL:           strings.TrimRight(getEnv("IDENTITY_URL", ""), "/"),
		IdentityAnonKey:       getEnv("IDENTITY_ANON_KEY", ""),
		IdentityJWTSecret:     getEnv("IDENTITY_JWT_SECRET", ""),
		OAuthDefaultProvider:  getEnv("OAUTH_DEFAULT_PROVIDER", "google"),
		DataBackend:           strings.ToLower(getEnv("DATA_BACKEND", DataBackendPostgREST)),
		RestURL:               strings.TrimRight(getEnv("REST_URL", ""), "/"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		SessionCookieName:     getEnv("SESSION_COOKIE_NAME", "portal_sid"),
		SessionCookieDomain:   getEnv("SESSION_COOKIE_DOMAIN", ""),
		SessionCookiePath:     getEnv("SESSION_COOKIE_PATH", "/"),
		SessionCookieSecure:   cookieSecure,
		SessionCookieSameSite: parseSameSite(getEnv("SESSION_COOKIE_SAMESITE", "Lax")),
		SessionIdleTTL:        mustDuration(getEnv("SESSION_IDLE_TTL", "30m")),
		SessionStorageTTL:     mustDuration(getEnv("SESSION_STORAGE_TTL", "720h")),
		RefreshMargin:         mustDuration(getEnv("REFRESH_MARGIN", "60s")),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "session"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		RoutesFile:            getEnv("ROUTES_FILE", ""),
		StaticDir:             getEnv("STATIC_DIR", ""),
		CORSOrigins:           splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.IdentityURL == "" {
		return fmt.Errorf("IDENTITY_URL is required")
	}
	if c.IdentityAnonKey == "" {
		return fmt.Errorf("IDENTITY_ANON_KEY is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	switch c.DataBackend {
	case DataBackendPostgREST:
		if c.RestURL == "" {
			return fmt.Errorf("REST_URL is required when DATA_BACKEND is %s", DataBackendPostgREST)
		}
	case DataBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATA_BACKEND is %s", DataBackendPostgres)
		}
	default:
		return fmt.Errorf("DATA_BACKEND must be %q or %q", DataBackendPostgREST, DataBackendPostgres)
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be a positive duration")
	}
	if c.SessionStorageTTL <= 0 {
		return fmt.Errorf("SESSION_STORAGE_TTL must be a positive duration")
	}
	if c.SessionCookieSameSite == http.SameSiteNoneMode && !c.SessionCookieSecure {
		return fmt.Errorf("SESSION_COOKIE_SAMESITE=None requires SESSION_COOKIE_SECURE=true")
	}
	for _, origin := range c.CORSOrigins {
		if origin == "*" && c.CORSAllowCreds {
			return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true with a wildcard origin")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}
