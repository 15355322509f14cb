package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-emailchange/pkg/errors"
)

// Config holds rate limiting configuration
type Config struct {
	// Global rate limiting
	GlobalEnabled    bool
	GlobalCapacity   int     // Max burst
	GlobalRefillRate float64 // Requests per second

	// Per-IP rate limiting
	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64

	// Per-account rate limiting (for authenticated requests)
	PerAccountEnabled    bool
	PerAccountCapacity   int
	PerAccountRefillRate float64

	// Bucket TTL (how long to keep inactive buckets in memory)
	BucketTTL time.Duration

	// Headers to include in response
	IncludeHeaders bool
}

// EndpointLimit defines rate limits for a specific endpoint
type EndpointLimit struct {
	Capacity   int
	RefillRate float64
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		// Global: 1000 requests per minute
		GlobalEnabled:    true,
		GlobalCapacity:   1000,
		GlobalRefillRate: 1000.0 / 60.0,

		// Per-IP: 100 requests per minute
		PerIPEnabled:    true,
		PerIPCapacity:   100,
		PerIPRefillRate: 100.0 / 60.0,

		// Per-account: 30 requests per minute
		PerAccountEnabled:    true,
		PerAccountCapacity:   30,
		PerAccountRefillRate: 30.0 / 60.0,

		BucketTTL:      1 * time.Hour,
		IncludeHeaders: true,
	}
}

// Middleware holds the rate limiting middleware state
type Middleware struct {
	config         *Config
	globalLimiter  *RateLimiter
	ipLimiter      *RateLimiter
	accountLimiter *RateLimiter
	guards         map[string]*RateLimiter
}

// NewMiddleware creates a new rate limiting middleware
func NewMiddleware(config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{
		config: config,
		guards: make(map[string]*RateLimiter),
	}

	if config.GlobalEnabled {
		m.globalLimiter = NewRateLimiter(config.GlobalCapacity, config.GlobalRefillRate, config.BucketTTL)
	}
	if config.PerIPEnabled {
		m.ipLimiter = NewRateLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.BucketTTL)
	}
	if config.PerAccountEnabled {
		m.accountLimiter = NewRateLimiter(config.PerAccountCapacity, config.PerAccountRefillRate, config.BucketTTL)
	}

	return m
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, wait := reserve(m.globalLimiter, "global"); !ok {
			m.rateLimitExceeded(w, r, "global", wait)
			return
		}

		ip := ClientIP(r)
		if ok, wait := reserve(m.ipLimiter, ip); !ok {
			m.rateLimitExceeded(w, r, "ip", wait)
			return
		}

		accountID := accountSubject(r)
		if ok, wait := reserve(m.accountLimiter, accountID); !ok {
			m.rateLimitExceeded(w, r, "account", wait)
			return
		}

		if m.config.IncludeHeaders {
			m.addRateLimitHeaders(w, ip, accountID)
		}

		next.ServeHTTP(w, r)
	})
}

// Guard limits a single route per client IP. Verification endpoints use it to slow
// down guessing of tokens and codes across requests.
func (m *Middleware) Guard(name string, limit EndpointLimit) func(http.Handler) http.Handler {
	limiter, ok := m.guards[name]
	if !ok {
		limiter = NewRateLimiter(limit.Capacity, limit.RefillRate, m.config.BucketTTL)
		m.guards[name] = limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, wait := limiter.Reserve(ClientIP(r)); !ok {
				m.rateLimitExceeded(w, r, name, wait)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Close stops the cleanup goroutines of every limiter
func (m *Middleware) Close() {
	for _, limiter := range []*RateLimiter{m.globalLimiter, m.ipLimiter, m.accountLimiter} {
		if limiter != nil {
			limiter.Close()
		}
	}
	for _, limiter := range m.guards {
		limiter.Close()
	}
}

// reserve skips limiters that are disabled and requests without a key
func reserve(limiter *RateLimiter, key string) (bool, time.Duration) {
	if limiter == nil || key == "" {
		return true, 0
	}
	return limiter.Reserve(key)
}

// retryAfterSeconds rounds wait up to whole seconds, at least one
func retryAfterSeconds(wait time.Duration) string {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string, wait time.Duration) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", ClientIP(r),
		"account", accountSubject(r),
		"path", r.URL.Path,
		"method", r.Method,
	)

	retryAfter := retryAfterSeconds(wait)
	e := apperrors.RateLimitExceeded(retryAfter).WithDetail("limit", limitType)
	w.Header().Set("Retry-After", retryAfter)
	render.Status(r, e.HTTPStatusCode())
	render.JSON(w, r, map[string]interface{}{
		"status":  "error",
		"message": "Too many requests. Please try again later.",
		"error": map[string]interface{}{
			"type":  "rate_limited",
			"limit": limitType,
		},
	})
}

func (m *Middleware) addRateLimitHeaders(w http.ResponseWriter, ip, accountID string) {
	if m.ipLimiter != nil && ip != "" {
		w.Header().Set("X-RateLimit-Limit-IP", strconv.Itoa(m.config.PerIPCapacity))
	}
	if m.accountLimiter != nil && accountID != "" {
		w.Header().Set("X-RateLimit-Limit-Account", strconv.Itoa(m.config.PerAccountCapacity))
	}
}

// ClientIP extracts the client IP address from the request
func ClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// accountSubject returns the "sub" claim of a verified JWT, if any
func accountSubject(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || claims == nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// GetStats returns statistics about all rate limiters
func (m *Middleware) GetStats() map[string]Stats {
	stats := make(map[string]Stats)

	if m.globalLimiter != nil {
		stats["global"] = m.globalLimiter.GetStats()
	}
	if m.ipLimiter != nil {
		stats["ip"] = m.ipLimiter.GetStats()
	}
	if m.accountLimiter != nil {
		stats["account"] = m.accountLimiter.GetStats()
	}
	for name, limiter := range m.guards {
		stats["guard:"+name] = limiter.GetStats()
	}

	return stats
}

// Reset resets rate limits for a specific IP or account
func (m *Middleware) Reset(key string) {
	if m.ipLimiter != nil {
		m.ipLimiter.Reset(key)
	}
	if m.accountLimiter != nil {
		m.accountLimiter.Reset(key)
	}
	for _, limiter := range m.guards {
		limiter.Reset(key)
	}
}
