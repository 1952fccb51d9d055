/*
Package configs is responsible for loading and parsing the application's configuration settings.

Every value is read from an operating system environment variable, with development defaults
and validation: the running environment, port, CORS origins, the token store DSN, the admin
secret, the reconnect grace period and the push-notification policy.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvDevelopment is the default environment; it relaxes origin checks and supplies insecure defaults.
const EnvDevelopment = "development"

// devAdminJWTSecret signs admin tokens in development when ADMIN_JWT_SECRET is unset.
const devAdminJWTSecret = "dev_only_admin_secret_change_me"

// DefaultPushAPIURL is the Expo push endpoint used when PUSH_API_URL is not set.
const DefaultPushAPIURL = "https://exp.host/--/api/v2/push/send"

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	AdminJWTSecret string

	// Token Store Settings
	DatabaseURL string

	// Matchmaking Settings
	GracePeriod time.Duration

	// Push Notification Settings
	PushEnabled    bool
	PushAPIURL     string
	PushCooldown   time.Duration
	PushBatchLimit int

	// StatsLocation is the time zone whose midnight starts "today" in token statistics.
	StatsLocation *time.Location
}

// IsDevelopment reports whether the application runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// UsesDevAdminSecret reports whether admin tokens are signed with the publicly known development secret.
func (c *AppConfig) UsesDevAdminSecret() bool {
	return c.AdminJWTSecret == devAdminJWTSecret
}

// LoadConfig reads and validates the application configuration from environment variables.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = getEnv("ENVIRONMENT", EnvDevelopment)

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", port, 1024, 65535)
	}
	cfg.Port = port

	// --- Security Settings ---
	cfg.AllowedOrigins = splitCSV(os.Getenv("ALLOWED_ORIGINS"))

	cfg.AdminJWTSecret = os.Getenv("ADMIN_JWT_SECRET")
	if cfg.AdminJWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("ADMIN_JWT_SECRET environment variable is required in %s environment", cfg.Environment)
		}
		cfg.AdminJWTSecret = devAdminJWTSecret
	}

	// --- Token Store Settings ---
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required in %s environment", cfg.Environment)
		}
		cfg.DatabaseURL = "sqlite://strangerchat.db"
	}

	// --- Matchmaking Settings ---
	if cfg.GracePeriod, err = getDuration("GRACE_PERIOD", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.GracePeriod <= 0 {
		return nil, fmt.Errorf("GRACE_PERIOD must be positive, got %s", cfg.GracePeriod)
	}

	// --- Push Notification Settings ---
	if cfg.PushEnabled, err = strconv.ParseBool(getEnv("PUSH_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("invalid PUSH_ENABLED environment variable: %w", err)
	}

	cfg.PushAPIURL = getEnv("PUSH_API_URL", DefaultPushAPIURL)

	if cfg.PushCooldown, err = getDuration("PUSH_COOLDOWN", 30*time.Minute); err != nil {
		return nil, err
	}

	if cfg.PushBatchLimit, err = strconv.Atoi(getEnv("PUSH_BATCH_LIMIT", "100")); err != nil {
		return nil, fmt.Errorf("invalid PUSH_BATCH_LIMIT environment variable: %w", err)
	}
	if cfg.PushBatchLimit <= 0 {
		return nil, fmt.Errorf("PUSH_BATCH_LIMIT must be positive, got %d", cfg.PushBatchLimit)
	}

	if cfg.StatsLocation, err = parseUTCOffset(getEnv("STATS_UTC_OFFSET", "+05:30")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return d, nil
}

func splitCSV(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseUTCOffset turns "+05:30" / "-03:00" / "Z" into a fixed time zone.
func parseUTCOffset(value string) (*time.Location, error) {
	if value == "Z" || value == "UTC" {
		return time.UTC, nil
	}

	t, err := time.Parse("-07:00", value)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_UTC_OFFSET %q: want a +HH:MM offset", value)
	}

	_, offset := t.Zone()
	return time.FixedZone("UTC"+value, offset), nil
}
