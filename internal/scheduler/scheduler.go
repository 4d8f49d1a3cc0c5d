// Package scheduler wires up the cron job that periodically triggers a sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobmate/careerwatch-service/internal/lock"
	"jobmate/careerwatch-service/internal/logger"
	"jobmate/careerwatch-service/internal/scraper"
)

// Runner is the single sweep entry point the scheduler drives.
type Runner interface {
	RunOnce(ctx context.Context) (*scraper.RunSummary, error)
}

// Scheduler wraps robfig/cron and manages the sweep loop.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    logger.Logger
	spec   string // cron spec, e.g. "@every 15m"

	// startup tracks the immediate run, which cron does not know about.
	startup sync.WaitGroup
}

// New creates a Scheduler that fires every interval. A tick that arrives
// while the previous sweep is still running is skipped.
func New(runner Runner, interval time.Duration, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	log = logger.Component(log, "scheduler")
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		runner: runner,
		log:    log,
		spec:   fmt.Sprintf("@every %s", interval),
	}
}

// Start registers the job and starts the scheduler. Also runs one sweep
// immediately so postings are picked up without waiting for the first tick.
// ctx is handed to every sweep; cancel it to abort running sweeps.
func (s *Scheduler) Start(ctx context.Context) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.log})).Then(cron.FuncJob(func() {
		s.runSweep(ctx)
	}))
	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("cron.AddJob: %w", err)
	}

	s.cron.Start()
	s.log.Info("cron started", logger.String("spec", s.spec))

	// The immediate run shares the skip wrapper with the cron entry.
	s.startup.Add(1)
	go func() {
		defer s.startup.Done()
		job.Run()
	}()
	return nil
}

// Stop halts the scheduler and waits for every running sweep to return,
// including the one started by Start.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.startup.Wait()
	s.log.Info("cron stopped")
}

func (s *Scheduler) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := s.runner.RunOnce(ctx)
	switch {
	case errors.Is(err, lock.ErrHeld):
		s.log.Info("sweep skipped, another run holds the lock")
	case err != nil:
		s.log.Error("sweep aborted", logger.Error(err))
	default:
		s.log.Debug("sweep cycle complete", logger.String("run_id", summary.RunID))
	}
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug(msg, logger.Any("details", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error(msg, logger.Error(err), logger.Any("details", keysAndValues))
}
