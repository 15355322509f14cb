package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// The GetEnv* helpers return defaultValue when the variable is unset or does not parse.

func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	return getEnvParsed(key, defaultValue, strconv.Atoi)
}

func GetEnvFloat64(key string, defaultValue float64) float64 {
	return getEnvParsed(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// GetEnvDuration accepts ISO 8601 ("PT1H") and Go ("1h") durations
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return getEnvParsed(key, defaultValue, ParseDuration)
}

// GetEnvBool understands true/false, 1/0, yes/no and on/off
func GetEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvParsed[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := parse(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// ParseDuration parses an ISO 8601 duration such as "PT15M", falling back to Go
// duration syntax.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	iso, err := duration.Parse(s)
	if err == nil {
		return iso.ToTimeDuration(), nil
	}
	if d, goErr := time.ParseDuration(s); goErr == nil {
		return d, nil
	}
	return 0, fmt.Errorf("invalid duration %q: %w", s, err)
}
