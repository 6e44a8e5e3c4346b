package config

import (
	"os"
	"strings"
)

const defaultTimezone = "America/Lima"

func envTrue(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// SkipMigrations disables AutoMigrate on startup (run ./cmd/migrate-style jobs instead).
//
// Set via env:
// - SKIP_MIGRATIONS=true
func SkipMigrations() bool {
	return envTrue("SKIP_MIGRATIONS")
}

// RateLimitEnabled turns on the Redis-backed per-IP limiter in front of the API.
//
// Set via env:
// - RATE_LIMIT_ENABLED=true
// - RATE_LIMIT_WINDOW_SECONDS=60
// - RATE_LIMIT_MAX_REQUESTS=600
func RateLimitEnabled() bool {
	return envTrue("RATE_LIMIT_ENABLED")
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

// Timezone is the register's local zone; "today" for closings and reports is
// evaluated in it.
func Timezone() string {
	if tz := strings.TrimSpace(os.Getenv("TIMEZONE")); tz != "" {
		return tz
	}
	return defaultTimezone
}
