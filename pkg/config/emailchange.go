package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tendant/simple-emailchange/pkg/emailchange"
)

// Persistence backends accepted by EMAIL_CHANGE_PERSISTENCE
var PersistenceTypes = []string{"postgres", "file", "redis", "inmem"}

const minThrottleLimit = 60 * time.Second

// EmailChangeConfig holds the email change policy. Durations accept ISO 8601
// ("PT1H") or Go duration strings ("1h").
type EmailChangeConfig struct {
	Lifetime                    string `env:"EMAIL_CHANGE_LIFETIME" env-default:"PT1H"`
	MaxAttempts                 int    `env:"EMAIL_CHANGE_MAX_ATTEMPTS" env-default:"5"`
	EnableThrottling            bool   `env:"EMAIL_CHANGE_ENABLE_THROTTLING" env-default:"true"`
	ThrottleLimit               string `env:"EMAIL_CHANGE_THROTTLE_LIMIT" env-default:"PT1H"`
	RequireOldEmailConfirmation bool   `env:"EMAIL_CHANGE_REQUIRE_OLD_EMAIL_CONFIRMATION" env-default:"false"`
	OtpLength                   int    `env:"EMAIL_CHANGE_OTP_LENGTH" env-default:"6"`
	Persistence                 string `env:"EMAIL_CHANGE_PERSISTENCE" env-default:"postgres"`
}

// DefaultEmailChangeConfig matches the env-default tags
func DefaultEmailChangeConfig() EmailChangeConfig {
	return EmailChangeConfig{
		Lifetime:         "PT1H",
		MaxAttempts:      emailchange.DefaultMaxAttempts,
		EnableThrottling: true,
		ThrottleLimit:    "PT1H",
		OtpLength:        emailchange.DefaultOtpLength,
		Persistence:      "postgres",
	}
}

// RequestLifetime returns the parsed lifetime clamped to [60s, 24h]
func (c EmailChangeConfig) RequestLifetime() (time.Duration, error) {
	lifetime, err := ParseDuration(c.Lifetime)
	if err != nil {
		return 0, fmt.Errorf("failed to parse EMAIL_CHANGE_LIFETIME: %w", err)
	}
	if lifetime < emailchange.MinRequestLifetime {
		return emailchange.MinRequestLifetime, nil
	}
	if lifetime > emailchange.MaxRequestLifetime {
		return emailchange.MaxRequestLifetime, nil
	}
	return lifetime, nil
}

// RetryWindow returns the throttle window, at least 60s. It is zero when throttling is off.
func (c EmailChangeConfig) RetryWindow() (time.Duration, error) {
	if !c.EnableThrottling {
		return 0, nil
	}
	limit, err := ParseDuration(c.ThrottleLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to parse EMAIL_CHANGE_THROTTLE_LIMIT: %w", err)
	}
	if limit < minThrottleLimit {
		return minThrottleLimit, nil
	}
	return limit, nil
}

// PersistenceType normalizes the configured backend name
func (c EmailChangeConfig) PersistenceType() string {
	return strings.ToLower(strings.TrimSpace(c.Persistence))
}

// Validate checks the fields that cannot be clamped
func (c EmailChangeConfig) Validate() error {
	errs := CollectErrors(
		RequireInRange("EMAIL_CHANGE_OTP_LENGTH", c.OtpLength, emailchange.MinOtpLength, emailchange.MaxOtpLength),
		RequireOneOf("EMAIL_CHANGE_PERSISTENCE", c.PersistenceType(), PersistenceTypes),
	)
	if _, err := c.RequestLifetime(); err != nil {
		errs = append(errs, ValidationError{Field: "EMAIL_CHANGE_LIFETIME", Message: err.Error()})
	}
	if _, err := c.RetryWindow(); err != nil {
		errs = append(errs, ValidationError{Field: "EMAIL_CHANGE_THROTTLE_LIMIT", Message: err.Error()})
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ToServiceOptions converts the config into options shared by the link and OTP services
func (c EmailChangeConfig) ToServiceOptions() ([]emailchange.Option, error) {
	lifetime, err := c.RequestLifetime()
	if err != nil {
		return nil, err
	}
	window, err := c.RetryWindow()
	if err != nil {
		return nil, err
	}

	return []emailchange.Option{
		emailchange.WithRequestLifetime(lifetime),
		emailchange.WithMaxAttempts(c.MaxAttempts),
		emailchange.WithThrottling(c.EnableThrottling),
		emailchange.WithRetryWindow(window),
		emailchange.WithRequireOldEmailConfirmation(c.RequireOldEmailConfirmation),
	}, nil
}
