package config

// NATSConfig controls the event stream. Events go to "<SubjectPrefix>.<event type>".
type NATSConfig struct {
	Enabled       bool   `env:"NATS_ENABLED" env-default:"false"`
	URL           string `env:"NATS_URL" env-default:"nats://localhost:4222"`
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" env-default:"email_change"`
	ClientName    string `env:"NATS_CLIENT_NAME" env-default:"simple-emailchange"`
}

func (n NATSConfig) Validate() error {
	if !n.Enabled {
		return nil
	}
	errs := CollectErrors(
		RequireValidURL("NATS_URL", n.URL),
		RequireNonEmpty("NATS_SUBJECT_PREFIX", n.SubjectPrefix),
	)
	if errs.HasErrors() {
		return errs
	}
	return nil
}
