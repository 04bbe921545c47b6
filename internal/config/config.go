// Package config provides configuration loading from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the digest service.
type Config struct {
	SlackWebhookURL   string // SLACK_WEBHOOK_URL, required
	VerificationToken string // SLACK_VERIFICATION_TOKEN, empty disables request validation
	ContactName       string // WHATSAPP_CONTACT_NAME, default "Anafre"
	Timezone          string // TIMEZONE, default "America/Mexico_City"
	Port              string // PORT, default "3000"
	SessionDir        string // SESSION_DIR, default "whatsapp-session"
	Headless          bool   // HEADLESS, default true
	Debug             bool   // DEBUG, default false

	// Scheduled trigger. Overlapping fires are not guarded against beyond the
	// launch semaphore; keeping the cadence sparse is an operator invariant.
	CronSpec string // CRON_SPEC, default "0 10 * * 1-5" (weekdays 10:00)

	// Per-step browser wait bounds
	NavTimeout          time.Duration // NAV_TIMEOUT_MS, default 60000ms
	QRTimeout           time.Duration // QR_TIMEOUT_MS, default 10000ms
	ChatListTimeout     time.Duration // CHAT_LIST_TIMEOUT_MS, default 30000ms
	SearchResultTimeout time.Duration // SEARCH_RESULT_TIMEOUT_MS, default 5000ms
	MessagesTimeout     time.Duration // MESSAGES_TIMEOUT_MS, default 10000ms
	SearchSettle        time.Duration // SEARCH_SETTLE_MS, default 2000ms

	// Outer bound on a whole background run; the orchestrator's per-step
	// timeouts do the real bounding.
	RunTimeout time.Duration // RUN_TIMEOUT_MS, default 300000ms (5m)

	RunHistorySize int // RUN_HISTORY_SIZE, default 32

	// Logging configuration
	LogLevel      string // LOG_LEVEL, default "info"
	LogFile       string // LOG_FILE, default "" (stderr only)
	LogMaxSizeMB  int    // LOG_MAX_SIZE_MB, default 10
	LogMaxBackups int    // LOG_MAX_BACKUPS, default 3
	LogMaxAgeDays int    // LOG_MAX_AGE_DAYS, default 28
	LogCompress   bool   // LOG_COMPRESS, default true
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		SlackWebhookURL:   getEnvString("SLACK_WEBHOOK_URL", ""),
		VerificationToken: getEnvString("SLACK_VERIFICATION_TOKEN", ""),
		ContactName:       getEnvString("WHATSAPP_CONTACT_NAME", "Anafre"),
		Timezone:          getEnvString("TIMEZONE", "America/Mexico_City"),
		Port:              getEnvString("PORT", "3000"),
		SessionDir:        getEnvString("SESSION_DIR", "whatsapp-session"),
		Headless:          getEnvBool("HEADLESS", true),
		Debug:             getEnvBool("DEBUG", false),

		CronSpec: getEnvString("CRON_SPEC", "0 10 * * 1-5"),

		NavTimeout:          getEnvDurationMs("NAV_TIMEOUT_MS", 60000),
		QRTimeout:           getEnvDurationMs("QR_TIMEOUT_MS", 10000),
		ChatListTimeout:     getEnvDurationMs("CHAT_LIST_TIMEOUT_MS", 30000),
		SearchResultTimeout: getEnvDurationMs("SEARCH_RESULT_TIMEOUT_MS", 5000),
		MessagesTimeout:     getEnvDurationMs("MESSAGES_TIMEOUT_MS", 10000),
		SearchSettle:        getEnvDurationMs("SEARCH_SETTLE_MS", 2000),

		RunTimeout: getEnvDurationMs("RUN_TIMEOUT_MS", 300000),

		RunHistorySize: getEnvInt("RUN_HISTORY_SIZE", 32),

		LogLevel:      getEnvString("LOG_LEVEL", "info"),
		LogFile:       getEnvString("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.SlackWebhookURL == "" {
		return fmt.Errorf("SLACK_WEBHOOK_URL is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured time zone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationMs(key string, defaultMs int) time.Duration {
	ms := getEnvInt(key, defaultMs)
	return time.Duration(ms) * time.Millisecond
}
