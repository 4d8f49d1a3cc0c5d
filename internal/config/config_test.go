package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/careerwatch-service/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/careerwatch")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, config.DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "9081", cfg.GRPCPort)
	assert.Equal(t, 15, cfg.ScrapeIntervalMinutes)
	assert.Equal(t, 15*time.Minute, cfg.Interval())
	assert.Equal(t, 4, cfg.SweepConcurrency)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 2*time.Minute, cfg.EntryTimeout)
	assert.Equal(t, 10*time.Minute, cfg.SweepBudget)
	assert.Equal(t, "config/watchlist.yaml", cfg.WatchlistPath)
	assert.False(t, cfg.SuppressFirstRunAlerts)
}

func TestLoad_PostgresNeedsDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "postgres")

	_, err := config.Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadWithoutStore_SkipsStoreChecks(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "mongo")

	cfg, err := config.LoadWithoutStore()
	require.NoError(t, err)
	assert.Equal(t, "config/watchlist.yaml", cfg.WatchlistPath)

	_, err = config.Load()
	assert.ErrorContains(t, err, "STORE_DRIVER")
}

func TestLoad_SQLiteNeedsNoDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/cw.db")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "/tmp/cw.db", cfg.SQLitePath)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":              "mongo",
		"SCRAPE_INTERVAL_MINUTES":   "0",
		"SWEEP_CONCURRENCY":         "many",
		"FETCH_TIMEOUT":             "15",
		"SWEEP_BUDGET":              "-1m",
		"SUPPRESS_FIRST_RUN_ALERTS": "sometimes",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/careerwatch")
			t.Setenv(key, val)

			_, err := config.Load()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/careerwatch")
	t.Setenv("SCRAPE_INTERVAL_MINUTES", "5")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("SUPPRESS_FIRST_RUN_ALERTS", "true")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Interval())
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.True(t, cfg.SuppressFirstRunAlerts)
}
