package config

import (
	"os"
	"strings"
	"time"
)

// Defaults for the fixed platform configuration. Overridable through the
// environment; immutable once FromEnv returns.
var (
	defaultPlatformDomains    = []string{"storegate.io", "localhost"}
	defaultReservedSubdomains = []string{"www", "admin", "api", "app", "dashboard"}
)

// Server captures process-level configuration for the gateway. It is built
// once at startup and passed explicitly; nothing mutates it afterwards.
type Server struct {
	Addr string
	Env  string

	// DatabaseURL selects the postgres-backed stores; empty means in-memory.
	DatabaseURL string
	// RedisURL selects the redis-backed probe lockout store; empty means in-memory.
	RedisURL string

	// PlatformDomains are the SaaS's own domains; one label in front of any
	// of them is a candidate tenant slug.
	PlatformDomains []string
	// ReservedSubdomains are labels that are never tenant slugs.
	ReservedSubdomains []string

	// SessionVerifyKey verifies the auth provider's signed session cookies.
	SessionVerifyKey string
	// TokenHashSecret is the master secret the capability-token hash key is
	// derived from. Rotating it invalidates every outstanding link.
	TokenHashSecret string

	RequestTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:               envOr("STOREGATE_ADDR", ":8080"),
		Env:                envOr("STOREGATE_ENV", "dev"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		PlatformDomains:    envList("PLATFORM_DOMAINS", defaultPlatformDomains),
		ReservedSubdomains: envList("RESERVED_SUBDOMAINS", defaultReservedSubdomains),
		SessionVerifyKey:   envOr("SESSION_VERIFY_KEY", "dev-session-key-change-in-production"),
		TokenHashSecret:    envOr("TOKEN_HASH_SECRET", "dev-token-secret-change-in-production"),
		RequestTimeout:     30 * time.Second,
	}
	if raw := os.Getenv("REQUEST_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.RequestTimeout = d
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
