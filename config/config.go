package config

import (
	"log"
	"os"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP
	ListenAddr string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string

	// Market data provider
	ProviderBaseURL string
	HistoryTTL      time.Duration
	QuoteTTL        time.Duration

	// Quote warm-up cron spec (with seconds field)
	QuoteRefreshCron string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/history.db"),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://query1.finance.yahoo.com"),
		HistoryTTL:      getDuration("HISTORY_TTL", 15*time.Minute),
		QuoteTTL:        getDuration("QUOTE_TTL", 15*time.Second),

		// Default: every 30 seconds
		QuoteRefreshCron: getEnv("QUOTE_REFRESH_CRON", "*/30 * * * * *"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] ignoring invalid %s value: %q", key, v)
		return fallback
	}
	return d
}
