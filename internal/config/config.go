// Package config loads and validates environment variables at startup.
// Fail-fast: if a variable is missing or invalid, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all runtime configuration for the careerwatch service.
type Config struct {
	HTTPPort string
	GRPCPort string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string // optional: enables the sweep lock and event publishing

	WatchlistPath     string
	DiscordWebhookURL string // optional

	ScrapeIntervalMinutes int // how often the cron job fires
	SweepConcurrency      int
	FetchTimeout          time.Duration
	EntryTimeout          time.Duration
	SweepBudget           time.Duration

	UserAgent              string
	LogLevel               string
	SuppressFirstRunAlerts bool
}

// LoadEnvFiles loads .env.local then .env into the process environment.
// Variables already set are never overwritten; missing files are ignored.
func LoadEnvFiles() error {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg, err := LoadWithoutStore()
	if err != nil {
		return nil, err
	}
	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.StoreDriver)
	}
	return cfg, nil
}

// LoadWithoutStore is Load minus the store checks, for commands that never
// open the seen store.
func LoadWithoutStore() (*Config, error) {
	cfg := &Config{
		HTTPPort:          envOr("HTTP_PORT", "8081"),
		GRPCPort:          envOr("GRPC_PORT", "9081"),
		StoreDriver:       strings.ToLower(envOr("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        envOr("SQLITE_PATH", "data/careerwatch.db"),
		RedisURL:          os.Getenv("REDIS_URL"),
		WatchlistPath:     envOr("WATCHLIST_PATH", "config/watchlist.yaml"),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		UserAgent:         os.Getenv("USER_AGENT"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.ScrapeIntervalMinutes, err = positiveInt("SCRAPE_INTERVAL_MINUTES", 15); err != nil {
		return nil, err
	}
	if cfg.SweepConcurrency, err = positiveInt("SWEEP_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = positiveDuration("FETCH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.EntryTimeout, err = positiveDuration("ENTRY_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepBudget, err = positiveDuration("SWEEP_BUDGET", 10*time.Minute); err != nil {
		return nil, err
	}
	if s := os.Getenv("SUPPRESS_FIRST_RUN_ALERTS"); s != "" {
		v, perr := strconv.ParseBool(s)
		if perr != nil {
			return nil, fmt.Errorf("SUPPRESS_FIRST_RUN_ALERTS must be a boolean, got %q", s)
		}
		cfg.SuppressFirstRunAlerts = v
	}

	return cfg, nil
}

// Interval returns the sweep interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.ScrapeIntervalMinutes) * time.Minute
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func positiveDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration like 15s, got %q", key, s)
	}
	return v, nil
}
