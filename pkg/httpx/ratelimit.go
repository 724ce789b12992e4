package httpx

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aussiebroadwan/xdauth/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// PortalLimit is the default outbound budget per portal host. A full login
// with captcha retries stays well under it; a runaway loop does not.
// Override with: XDAUTH_RATELIMIT_REQUESTS, XDAUTH_RATELIMIT_WINDOW_SEC, XDAUTH_RATELIMIT_BURST
var PortalLimit = RateLimitConfig{
	RequestsPerWindow: 60,
	Window:            time.Minute,
	Burst:             20,
}

func init() {
	PortalLimit = ParseRateLimitFromEnv("XDAUTH_RATELIMIT", PortalLimit)
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: {prefix}_{field}
// For example: XDAUTH_RATELIMIT_REQUESTS, XDAUTH_RATELIMIT_WINDOW_SEC, XDAUTH_RATELIMIT_BURST
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv(prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv(prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv(prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// KeyExtractor groups outbound requests for rate limiting purposes.
type KeyExtractor func(*http.Request) string

// HostKeyExtractor limits per destination host.
func HostKeyExtractor(r *http.Request) string {
	return r.URL.Host
}

// rateLimiter manages rate limiters for different keys
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newRateLimiter(config RateLimitConfig) *rateLimiter {
	ratePerSecond := float64(config.RequestsPerWindow) / config.Window.Seconds()
	return &rateLimiter{
		rate:  rate.Limit(ratePerSecond),
		burst: max(config.Burst, 1),
	}
}

// getLimiter retrieves or creates a rate limiter for the given key
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.rate, rl.burst))
	return actual.(*rate.Limiter)
}

// RateLimitTransport delays outbound requests so that no key exceeds its
// budget. Requests wait for a token rather than failing; the wait honours the
// request context.
type RateLimitTransport struct {
	Base         http.RoundTripper
	KeyExtractor KeyExtractor
	limiter      *rateLimiter
}

// NewRateLimitTransport wraps base with a limiter keyed by keyExtractor.
// A nil keyExtractor limits per host.
func NewRateLimitTransport(base http.RoundTripper, config RateLimitConfig, keyExtractor KeyExtractor) *RateLimitTransport {
	if keyExtractor == nil {
		keyExtractor = HostKeyExtractor
	}
	return &RateLimitTransport{
		Base:         base,
		KeyExtractor: keyExtractor,
		limiter:      newRateLimiter(config),
	}
}

func (t *RateLimitTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	key := t.KeyExtractor(r)
	if key == "" {
		return base.RoundTrip(r)
	}

	limiter := t.limiter.getLimiter(key)
	if !limiter.Allow() {
		slogx.FromContext(r.Context()).Debug("rate limit: waiting for token", "key", key)
		if err := limiter.Wait(r.Context()); err != nil {
			return nil, err
		}
	}
	return base.RoundTrip(r)
}
