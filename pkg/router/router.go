package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	emailchangeapi "github.com/tendant/simple-emailchange/pkg/emailchange/api"
	"github.com/tendant/simple-emailchange/pkg/ratelimit"
)

// DefaultPrefix is where the email change routes are mounted
const DefaultPrefix = "/api/v1/email-change"

// Config holds the dependencies needed to setup routes
type Config struct {
	// Prefix for the email change routes, DefaultPrefix when empty
	Prefix string

	Handle *emailchangeapi.Handle

	// JWT authentication
	Auth *jwtauth.JWTAuth

	// RateLimit guards the verification endpoints when set
	RateLimit   *ratelimit.Middleware
	VerifyLimit ratelimit.EndpointLimit

	// Metrics is served at /metrics when set
	Metrics http.Handler
}

func (cfg Config) prefix() string {
	if cfg.Prefix == "" {
		return DefaultPrefix
	}
	return cfg.Prefix
}

// SetupRoutes mounts all email change routes on the provided router
func SetupRoutes(router chi.Router, cfg Config) {
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics)
	}

	router.Route(cfg.prefix(), func(r chi.Router) {
		r.Use(emailchangeapi.RequestMetadata)
		mountPublic(r, cfg)
		mountAuthenticated(r, cfg)
	})
}

// SetupPublicRoutes mounts only the link verification route
func SetupPublicRoutes(router chi.Router, cfg Config) {
	router.Route(cfg.prefix(), func(r chi.Router) {
		r.Use(emailchangeapi.RequestMetadata)
		mountPublic(r, cfg)
	})
}

// SetupAuthenticatedRoutes mounts only the routes that act on the signed in user
func SetupAuthenticatedRoutes(router chi.Router, cfg Config) {
	router.Route(cfg.prefix(), func(r chi.Router) {
		r.Use(emailchangeapi.RequestMetadata)
		mountAuthenticated(r, cfg)
	})
}

// mountPublic registers GET /verify. The link is opened from an email client,
// so it carries no bearer token.
func mountPublic(r chi.Router, cfg Config) {
	r.Group(func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit.Guard("email_change_verify", cfg.VerifyLimit))
		}
		r.Get("/verify", cfg.Handle.Verify)
	})
}

func mountAuthenticated(r chi.Router, cfg Config) {
	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(cfg.Auth))
		r.Use(jwtauth.Authenticator(cfg.Auth))

		r.Post("/", cfg.Handle.Initiate)
		r.Post("/confirm", cfg.Handle.Confirm)
		r.Post("/cancel", cfg.Handle.Cancel)
		r.Get("/status", cfg.Handle.Status)

		if cfg.Handle.HasOtp() {
			r.Post("/otp", cfg.Handle.RequestOtp)
			r.Group(func(r chi.Router) {
				if cfg.RateLimit != nil {
					r.Use(cfg.RateLimit.Guard("email_change_otp_verify", cfg.VerifyLimit))
				}
				r.Post("/otp/verify", cfg.Handle.VerifyOtp)
			})
		}
	})
}
