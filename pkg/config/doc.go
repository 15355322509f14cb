// Package config holds the env-tagged configuration structs read by the
// email change binaries with cleanenv, plus small helpers for reading and
// validating environment values.
//
// Durations accept ISO 8601 ("PT1H", "P1D") as well as Go duration strings:
//
//	var cfg config.EmailChangeConfig
//	if err := cleanenv.ReadEnv(&cfg); err != nil {
//		return err
//	}
//	opts, err := cfg.ToServiceOptions()
//
// EMAIL_CHANGE_LIFETIME is clamped to [60s, 24h] and EMAIL_CHANGE_THROTTLE_LIMIT
// to at least 60s. With EMAIL_CHANGE_ENABLE_THROTTLING=false a new request
// replaces the pending one.
package config
