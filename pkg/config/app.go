package config

// ServiceConfig holds the settings of the email change service itself. The HTTP
// listener is configured through chi-demo's app.AppConfig.
type ServiceConfig struct {
	// BaseURL is the public origin used in signed links
	BaseURL string `env:"BASE_URL" env-default:"http://localhost:3000"`
	// VerifyPath is the frontend page that receives the selector and token
	VerifyPath string `env:"EMAIL_CHANGE_VERIFY_PATH" env-default:"/email-change/verify"`
	// RoutePrefix is where the API is mounted
	RoutePrefix string `env:"EMAIL_CHANGE_ROUTE_PREFIX" env-default:"/api/v1/email-change"`
	DataDir     string `env:"DATA_DIR" env-default:"./data"`
	// SeedUsers are created at startup when missing, mainly for the inmem and redis backends
	SeedUsers []string `env:"EMAIL_CHANGE_SEED_USERS" env-separator:","`
	// PurgeInterval is how often expired requests are removed, disabled when empty
	PurgeInterval string `env:"EMAIL_CHANGE_PURGE_INTERVAL" env-default:"PT1H"`
}

func (s ServiceConfig) Validate() error {
	errs := CollectErrors(
		RequireValidURL("BASE_URL", s.BaseURL),
		RequireNonEmpty("EMAIL_CHANGE_VERIFY_PATH", s.VerifyPath),
		RequireNonEmpty("EMAIL_CHANGE_ROUTE_PREFIX", s.RoutePrefix),
	)
	if errs.HasErrors() {
		return errs
	}
	return nil
}
