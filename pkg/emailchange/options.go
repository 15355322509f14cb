package emailchange

import "time"

const (
	DefaultRequestLifetime = time.Hour
	DefaultRetryWindow     = time.Hour
	DefaultMaxAttempts     = 5

	MinRequestLifetime = 60 * time.Second
	MaxRequestLifetime = 24 * time.Hour
)

type serviceOptions struct {
	requestLifetime             time.Duration
	retryWindow                 time.Duration
	maxAttempts                 int
	throttling                  bool
	requireOldEmailConfirmation bool
	tokens                      *TokenGenerator
	publisher                   EventPublisher
	now                         func() time.Time
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		requestLifetime: DefaultRequestLifetime,
		retryWindow:     DefaultRetryWindow,
		maxAttempts:     DefaultMaxAttempts,
		throttling:      true,
		tokens:          NewTokenGenerator(),
		now:             time.Now,
	}
}

// Option configures EmailChangeService and OtpEmailChangeService
type Option func(*serviceOptions)

// WithRequestLifetime sets how long a request stays valid, bounded to [1m, 24h]
func WithRequestLifetime(lifetime time.Duration) Option {
	return func(o *serviceOptions) {
		o.requestLifetime = clampDuration(lifetime, MinRequestLifetime, MaxRequestLifetime)
	}
}

// WithRetryWindow sets the delay reported to callers that hit the one-request-per-account gate
func WithRetryWindow(window time.Duration) Option {
	return func(o *serviceOptions) {
		if window >= 0 {
			o.retryWindow = window
		}
	}
}

// WithMaxAttempts sets the failed verification limit. Values below 1 are raised to 1.
func WithMaxAttempts(maxAttempts int) Option {
	return func(o *serviceOptions) {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		o.maxAttempts = maxAttempts
	}
}

// WithThrottling controls the one-request-per-account gate. When disabled a new
// request replaces the live one instead of being rejected.
func WithThrottling(enabled bool) Option {
	return func(o *serviceOptions) {
		o.throttling = enabled
	}
}

// WithRequireOldEmailConfirmation enables dual confirmation for link based changes
func WithRequireOldEmailConfirmation(required bool) Option {
	return func(o *serviceOptions) {
		o.requireOldEmailConfirmation = required
	}
}

func WithTokenGenerator(tokens *TokenGenerator) Option {
	return func(o *serviceOptions) {
		if tokens != nil {
			o.tokens = tokens
		}
	}
}

// WithEventPublisher sets where lifecycle events go
func WithEventPublisher(publisher EventPublisher) Option {
	return func(o *serviceOptions) {
		o.publisher = publisher
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func clampDuration(d, lower, upper time.Duration) time.Duration {
	if d < lower {
		return lower
	}
	if d > upper {
		return upper
	}
	return d
}
