// Package scraper runs sweeps: every watch entry is resolved, fetched,
// normalized, diffed against the seen store, filtered and notified.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jobmate/careerwatch-service/internal/ats"
	"jobmate/careerwatch-service/internal/config"
	"jobmate/careerwatch-service/internal/diff"
	"jobmate/careerwatch-service/internal/lock"
	"jobmate/careerwatch-service/internal/logger"
	"jobmate/careerwatch-service/internal/metrics"
	"jobmate/careerwatch-service/internal/model"
	"jobmate/careerwatch-service/internal/notify"
)

const finishRunTimeout = 10 * time.Second

// RunRecorder stores the sweep history.
type RunRecorder interface {
	StartRun(ctx context.Context, run model.RunRecord) error
	FinishRun(ctx context.Context, run model.RunRecord) error
}

// Deps are the collaborators of a Sweeper. Locker, Metrics and Log may be nil.
type Deps struct {
	Watchlist config.Provider
	Resolver  ats.Resolver
	Registry  *ats.Registry
	Engine    *diff.Engine
	Runs      RunRecorder
	Notifier  notify.Notifier
	Locker    lock.Locker
	Metrics   *metrics.Metrics
	Log       logger.Logger
}

// Options tune a sweep.
type Options struct {
	Concurrency            int
	EntryTimeout           time.Duration
	SweepBudget            time.Duration
	SuppressFirstRunAlerts bool
}

// Sweeper runs one full sweep per RunOnce call.
type Sweeper struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// NewSweeper validates deps and fills defaults.
func NewSweeper(deps Deps, opts Options) (*Sweeper, error) {
	switch {
	case deps.Watchlist == nil:
		return nil, errors.New("sweeper: watchlist provider is required")
	case deps.Resolver == nil:
		return nil, errors.New("sweeper: resolver is required")
	case deps.Registry == nil:
		return nil, errors.New("sweeper: adapter registry is required")
	case deps.Engine == nil:
		return nil, errors.New("sweeper: diff engine is required")
	case deps.Runs == nil:
		return nil, errors.New("sweeper: run recorder is required")
	case deps.Notifier == nil:
		return nil, errors.New("sweeper: notifier is required")
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	deps.Log = logger.Component(deps.Log, "sweeper")

	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.EntryTimeout <= 0 {
		opts.EntryTimeout = 2 * time.Minute
	}
	if opts.SweepBudget <= 0 {
		opts.SweepBudget = 10 * time.Minute
	}
	return &Sweeper{deps: deps, opts: opts, now: time.Now}, nil
}

// RunSummary reports what one sweep did.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Entries    []EntryResult

	EntriesChecked int
	EntriesFailed  int
	NewPostings    int
	Matched        int
	Notified       int
	NotifyFailed   int
	// PersistenceFailures are postings that stay unrecorded and will be
	// classified new again next sweep.
	PersistenceFailures []*diff.PersistenceError
}

// Record converts the summary into the runs-table row.
func (s *RunSummary) Record() model.RunRecord {
	return model.RunRecord{
		ID:             s.RunID,
		StartedAt:      s.StartedAt,
		FinishedAt:     s.FinishedAt,
		EntriesChecked: s.EntriesChecked,
		EntriesFailed:  s.EntriesFailed,
		NewPostings:    s.NewPostings,
		Notified:       s.Notified,
	}
}

// RunOnce performs one sweep. It returns an error only when the sweep could
// not start: the watchlist failed to load or another sweep holds the lock
// (errors.Is(err, lock.ErrHeld)). Entry failures are reported in the summary.
func (s *Sweeper) RunOnce(ctx context.Context) (*RunSummary, error) {
	log := s.deps.Log

	wl, err := s.deps.Watchlist.Load(ctx)
	if err != nil {
		s.countSweep(metrics.OutcomeFailed)
		return nil, fmt.Errorf("load watchlist: %w", err)
	}

	release, err := s.deps.Locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			s.countSweep(metrics.OutcomeSkipped)
		} else {
			s.countSweep(metrics.OutcomeFailed)
		}
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	defer release()

	summary := &RunSummary{RunID: uuid.NewString(), StartedAt: s.now().UTC()}
	log = log.With(logger.String("run_id", summary.RunID))
	log.Info("sweep started", logger.Int("entries", len(wl.Entries)))

	if err := s.deps.Runs.StartRun(ctx, summary.Record()); err != nil {
		log.Warn("recording sweep start failed", logger.Error(err))
	}

	sweepCtx, cancel := context.WithTimeout(ctx, s.opts.SweepBudget)
	defer cancel()

	// Detection results are shared by entries of this sweep only.
	resolver := ats.NewRunCache(s.deps.Resolver)
	results := make([]EntryResult, len(wl.Entries))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, entry := range wl.Entries {
		g.Go(func() error {
			results[i] = s.processEntry(sweepCtx, log, resolver, wl.Filters, entry)
			return nil
		})
	}
	_ = g.Wait()

	summary.Entries = results
	for _, r := range results {
		summary.EntriesChecked++
		if r.Err != nil {
			summary.EntriesFailed++
		}
		summary.NewPostings += r.New
		summary.Matched += r.Matched
		summary.Notified += r.Notified
		summary.NotifyFailed += r.NotifyFailed
		summary.PersistenceFailures = append(summary.PersistenceFailures, r.PersistenceFailures...)
	}
	summary.FinishedAt = s.now().UTC()

	finishCtx, finishCancel := context.WithTimeout(context.WithoutCancel(ctx), finishRunTimeout)
	defer finishCancel()
	if err := s.deps.Runs.FinishRun(finishCtx, summary.Record()); err != nil {
		log.Warn("recording sweep finish failed", logger.Error(err))
	}

	s.observe(summary)
	if len(summary.PersistenceFailures) > 0 {
		log.Error("postings could not be recorded and will be retried next sweep",
			logger.Int("count", len(summary.PersistenceFailures)),
			logger.Error(errors.Join(persistenceErrs(summary.PersistenceFailures)...)),
		)
	}
	log.Info("sweep finished",
		logger.Int("entries_checked", summary.EntriesChecked),
		logger.Int("entries_failed", summary.EntriesFailed),
		logger.Int("new_postings", summary.NewPostings),
		logger.Int("matched", summary.Matched),
		logger.Int("notified", summary.Notified),
		logger.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

func (s *Sweeper) countSweep(outcome string) {
	if m := s.deps.Metrics; m != nil {
		m.SweepsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Sweeper) observe(summary *RunSummary) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	m.SweepsTotal.WithLabelValues(metrics.OutcomeCompleted).Inc()
	m.SweepDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	m.LastSweepTime.Set(float64(summary.FinishedAt.Unix()))
	m.EntriesChecked.Add(float64(summary.EntriesChecked))
	for _, r := range summary.Entries {
		if r.FailureReason != "" {
			m.EntriesFailed.WithLabelValues(r.FailureReason).Inc()
		}
		source := string(r.Resolution.Kind)
		if source == "" {
			continue
		}
		m.PostingsFetched.WithLabelValues(source).Add(float64(r.Fetched))
		m.PostingsMalformed.WithLabelValues(source).Add(float64(r.Malformed))
		m.PostingsNew.WithLabelValues(source).Add(float64(r.New))
	}
	m.Notifications.WithLabelValues("sent").Add(float64(summary.Notified))
	m.Notifications.WithLabelValues("failed").Add(float64(summary.NotifyFailed))
}

func persistenceErrs(perrs []*diff.PersistenceError) []error {
	errs := make([]error, len(perrs))
	for i, e := range perrs {
		errs[i] = e
	}
	return errs
}
