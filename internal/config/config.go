// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	DBPath         string
	ExportToken    string
	AllowedOrigins []string
	CookieSecure   bool
	LogLevel       slog.Level
	Study          StudyConfig
	Retry          RetryConfig
	Timeout        TimeoutConfig
}

// StudyConfig holds the experiment constants.
type StudyConfig struct {
	MaxTurns        int
	Stage1Threshold int
	FollowUpDelay   time.Duration
}

// RetryConfig controls retries on SQLite contention.
type RetryConfig struct {
	DatabaseMaxRetries     int
	DatabaseRetryBaseDelay time.Duration
}

// TimeoutConfig holds request-scoped timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	delayDays := getEnvInt("FOLLOWUP_DELAY_DAYS", getEnvInt("T2_DELAY_DAYS", 0))

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/experiment.db"),
		ExportToken:    strings.TrimSpace(getEnv("EXPORT_TOKEN", "")),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		CookieSecure:   getEnvBool("COOKIE_SECURE", false),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		Study: StudyConfig{
			MaxTurns:        getEnvInt("MAX_TURNS", 20),
			Stage1Threshold: getEnvInt("STAGE1_THRESHOLD", 10),
			FollowUpDelay:   time.Duration(delayDays) * 24 * time.Hour,
		},
		Retry: RetryConfig{
			DatabaseMaxRetries:     getEnvInt("DB_MAX_RETRIES", 3),
			DatabaseRetryBaseDelay: getEnvDuration("DB_RETRY_BASE_DELAY", 50*time.Millisecond),
		},
		Timeout: TimeoutConfig{
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Study.MaxTurns <= 0 {
		return fmt.Errorf("MAX_TURNS must be > 0")
	}
	if c.Study.Stage1Threshold <= 0 || c.Study.Stage1Threshold > c.Study.MaxTurns {
		return fmt.Errorf("STAGE1_THRESHOLD must be between 1 and MAX_TURNS")
	}
	if c.Study.FollowUpDelay < 0 {
		return fmt.Errorf("FOLLOWUP_DELAY_DAYS cannot be negative")
	}
	if c.Retry.DatabaseMaxRetries <= 0 {
		return fmt.Errorf("DB_MAX_RETRIES must be > 0")
	}
	return nil
}

// ExportProtected returns true if export endpoints require a token.
func (c *Config) ExportProtected() bool {
	return c.ExportToken != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
