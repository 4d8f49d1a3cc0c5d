package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"jobmate/careerwatch-service/internal/ats"
	"jobmate/careerwatch-service/internal/config"
	"jobmate/careerwatch-service/internal/db"
	"jobmate/careerwatch-service/internal/diff"
	"jobmate/careerwatch-service/internal/lock"
	"jobmate/careerwatch-service/internal/logger"
	"jobmate/careerwatch-service/internal/metrics"
	"jobmate/careerwatch-service/internal/notify"
	"jobmate/careerwatch-service/internal/scraper"
	"jobmate/careerwatch-service/internal/store"
)

const postgresMaxConns = 10

// app is the wired service shared by serve and run.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	store    store.Store
	rdb      *redis.Client
	registry *prometheus.Registry
	sweeper  *scraper.Sweeper
}

// newApp opens the store and Redis and builds the sweeper. A dry run keeps
// the seen set in memory and only logs notifications.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger, dryRun bool) (*app, error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var err error
	if dryRun {
		a.store = store.NewMemory()
	} else if a.store, err = openStore(ctx, cfg, log); err != nil {
		return nil, err
	}

	notifiers := notify.Multi{notify.NewLog(logger.Component(log, "notify"))}
	var locker lock.Locker = lock.NewLocal()
	if !dryRun {
		if d := notify.NewDiscord(cfg.DiscordWebhookURL, nil); d != nil {
			notifiers = append(notifiers, d)
		} else {
			log.Warn("DISCORD_WEBHOOK_URL not set, alerts are only logged")
		}

		if cfg.RedisURL != "" {
			log.Info("connecting to Redis")
			if a.rdb, err = db.NewRedisClient(ctx, cfg.RedisURL); err != nil {
				a.Close()
				return nil, fmt.Errorf("redis: %w", err)
			}
			locker = lock.NewRedis(a.rdb, lock.DefaultKey, cfg.SweepBudget+time.Minute)
			notifiers = append(notifiers, notify.NewPublisher(a.rdb))
		}
	}

	client := newATSClient(cfg, log)
	a.sweeper, err = scraper.NewSweeper(scraper.Deps{
		Watchlist: config.NewFileProvider(cfg.WatchlistPath),
		Resolver:  ats.NewDetector(client, logger.Component(log, "detector")),
		Registry:  ats.NewDefaultRegistry(client),
		Engine:    diff.NewEngine(a.store, logger.Component(log, "diff")),
		Runs:      a.store,
		Notifier:  notifiers,
		Locker:    locker,
		Metrics:   metrics.New(a.registry),
		Log:       log,
	}, scraper.Options{
		Concurrency:            cfg.SweepConcurrency,
		EntryTimeout:           cfg.EntryTimeout,
		SweepBudget:            cfg.SweepBudget,
		SuppressFirstRunAlerts: cfg.SuppressFirstRunAlerts,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func newATSClient(cfg *config.Config, log logger.Logger) *ats.Client {
	return ats.NewClient(ats.ClientConfig{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
	}, logger.Component(log, "http"))
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		log.Info("opening SQLite", logger.String("path", cfg.SQLitePath))
		gdb, err := db.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		s, err := store.NewSQLite(gdb)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		log.Info("connecting to PostgreSQL")
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, postgresMaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s := store.NewPostgres(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Close releases the store and Redis.
func (a *app) Close() {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("closing resources", logger.Error(err))
	}
}
