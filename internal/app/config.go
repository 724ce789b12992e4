package app

import (
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/pkg/httpx"
)

type Config struct {
	DatabaseFile  string        // Optional: path to the vault SQLite file (default: ./xdauth.db)
	MasterKeyPath string        // Optional: master key file for session snapshots; falls back to XDAUTH_MASTER_KEY
	ProtocolFile  string        // Optional: YAML file overriding portal endpoints
	UserAgent     string        // Optional: User-Agent sent to the portals (default: Go's)
	MaxAttempts   int           // Attempt budget per login (default: 5)
	HTTPTimeout   time.Duration // Per-request timeout including the body (default: 30s)
	RateLimit     httpx.RateLimitConfig
	Env           string // Environment (dev, prod) (default: prod)
	LogLevel      string // Log level (debug, info, warn, error) (default: warn)
	LogFormat     string // Log format (json, text) (default: text)
}

func LoadConfig() Config {
	return Config{
		DatabaseFile:  getEnvOrDefault("XDAUTH_DATABASE_FILE", "xdauth.db"),
		MasterKeyPath: os.Getenv("XDAUTH_MASTER_KEY_PATH"),
		ProtocolFile:  os.Getenv("XDAUTH_PROTOCOL_FILE"),
		UserAgent:     os.Getenv("XDAUTH_USER_AGENT"),
		MaxAttempts:   getEnvIntOrDefault("XDAUTH_MAX_ATTEMPTS", login.DefaultMaxAttempts),
		HTTPTimeout:   getEnvDurationOrDefault("XDAUTH_HTTP_TIMEOUT", transport.DefaultTimeout),
		RateLimit:     httpx.ParseRateLimitFromEnv("XDAUTH_RATELIMIT", httpx.PortalLimit),
		Env:           getEnvOrDefault("ENV", "prod"),
		// A CLI talks to a terminal, so text at warn keeps stdout readable.
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}
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

	// Try parsing as duration (e.g., "45s", "2m")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
