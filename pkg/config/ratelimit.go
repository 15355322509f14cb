package config

import (
	"time"

	"github.com/tendant/simple-emailchange/pkg/ratelimit"
)

// RateLimitConfig contains rate limiting settings.
// Refill rates are tokens per second.
type RateLimitConfig struct {
	// Global rate limiting
	GlobalEnabled    bool    `env:"RATELIMIT_GLOBAL_ENABLED" env-default:"true"`
	GlobalCapacity   int     `env:"RATELIMIT_GLOBAL_CAPACITY" env-default:"1000"`
	GlobalRefillRate float64 `env:"RATELIMIT_GLOBAL_REFILL_RATE" env-default:"16.67"`

	// Per-IP rate limiting
	PerIPEnabled    bool    `env:"RATELIMIT_PER_IP_ENABLED" env-default:"true"`
	PerIPCapacity   int     `env:"RATELIMIT_PER_IP_CAPACITY" env-default:"100"`
	PerIPRefillRate float64 `env:"RATELIMIT_PER_IP_REFILL_RATE" env-default:"1.67"`

	// Per-account rate limiting (for authenticated requests)
	PerAccountEnabled    bool    `env:"RATELIMIT_PER_ACCOUNT_ENABLED" env-default:"true"`
	PerAccountCapacity   int     `env:"RATELIMIT_PER_ACCOUNT_CAPACITY" env-default:"30"`
	PerAccountRefillRate float64 `env:"RATELIMIT_PER_ACCOUNT_REFILL_RATE" env-default:"0.5"`

	// Verification endpoints: 10 per minute (token guessing protection)
	VerifyCapacity   int     `env:"RATELIMIT_VERIFY_CAPACITY" env-default:"10"`
	VerifyRefillRate float64 `env:"RATELIMIT_VERIFY_REFILL_RATE" env-default:"0.167"`

	// IncludeHeaders controls whether rate limit headers are included in responses
	IncludeHeaders bool `env:"RATELIMIT_INCLUDE_HEADERS" env-default:"true"`
}

// DefaultRateLimitConfig returns a RateLimitConfig with sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		GlobalEnabled:    true,
		GlobalCapacity:   1000,
		GlobalRefillRate: 16.67,

		PerIPEnabled:    true,
		PerIPCapacity:   100,
		PerIPRefillRate: 1.67,

		PerAccountEnabled:    true,
		PerAccountCapacity:   30,
		PerAccountRefillRate: 0.5,

		VerifyCapacity:   10,
		VerifyRefillRate: 0.167,

		IncludeHeaders: true,
	}
}

// NewRateLimitConfigFromEnv loads RateLimitConfig using the helper functions,
// for callers that do not go through cleanenv.
func NewRateLimitConfigFromEnv() RateLimitConfig {
	d := DefaultRateLimitConfig()
	return RateLimitConfig{
		GlobalEnabled:        GetEnvBool("RATELIMIT_GLOBAL_ENABLED", d.GlobalEnabled),
		GlobalCapacity:       GetEnvInt("RATELIMIT_GLOBAL_CAPACITY", d.GlobalCapacity),
		GlobalRefillRate:     GetEnvFloat64("RATELIMIT_GLOBAL_REFILL_RATE", d.GlobalRefillRate),
		PerIPEnabled:         GetEnvBool("RATELIMIT_PER_IP_ENABLED", d.PerIPEnabled),
		PerIPCapacity:        GetEnvInt("RATELIMIT_PER_IP_CAPACITY", d.PerIPCapacity),
		PerIPRefillRate:      GetEnvFloat64("RATELIMIT_PER_IP_REFILL_RATE", d.PerIPRefillRate),
		PerAccountEnabled:    GetEnvBool("RATELIMIT_PER_ACCOUNT_ENABLED", d.PerAccountEnabled),
		PerAccountCapacity:   GetEnvInt("RATELIMIT_PER_ACCOUNT_CAPACITY", d.PerAccountCapacity),
		PerAccountRefillRate: GetEnvFloat64("RATELIMIT_PER_ACCOUNT_REFILL_RATE", d.PerAccountRefillRate),
		VerifyCapacity:       GetEnvInt("RATELIMIT_VERIFY_CAPACITY", d.VerifyCapacity),
		VerifyRefillRate:     GetEnvFloat64("RATELIMIT_VERIFY_REFILL_RATE", d.VerifyRefillRate),
		IncludeHeaders:       GetEnvBool("RATELIMIT_INCLUDE_HEADERS", d.IncludeHeaders),
	}
}

// ToMiddlewareConfig converts to the ratelimit package configuration
func (c RateLimitConfig) ToMiddlewareConfig() *ratelimit.Config {
	return &ratelimit.Config{
		GlobalEnabled:        c.GlobalEnabled,
		GlobalCapacity:       c.GlobalCapacity,
		GlobalRefillRate:     c.GlobalRefillRate,
		PerIPEnabled:         c.PerIPEnabled,
		PerIPCapacity:        c.PerIPCapacity,
		PerIPRefillRate:      c.PerIPRefillRate,
		PerAccountEnabled:    c.PerAccountEnabled,
		PerAccountCapacity:   c.PerAccountCapacity,
		PerAccountRefillRate: c.PerAccountRefillRate,
		BucketTTL:            time.Hour,
		IncludeHeaders:       c.IncludeHeaders,
	}
}

// VerifyLimit is the per-IP limit applied to token and code verification
func (c RateLimitConfig) VerifyLimit() ratelimit.EndpointLimit {
	return ratelimit.EndpointLimit{
		Capacity:   c.VerifyCapacity,
		RefillRate: c.VerifyRefillRate,
	}
}
