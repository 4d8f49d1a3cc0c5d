package scraper

import (
	"context"
	"errors"

	"jobmate/careerwatch-service/internal/ats"
	"jobmate/careerwatch-service/internal/diff"
	"jobmate/careerwatch-service/internal/filter"
	"jobmate/careerwatch-service/internal/logger"
	"jobmate/careerwatch-service/internal/metrics"
	"jobmate/careerwatch-service/internal/model"
	"jobmate/careerwatch-service/internal/normalize"
)

// EntryResult is the outcome of one watch entry in a sweep.
type EntryResult struct {
	Name       string
	Resolution model.Resolution

	Fetched      int
	Malformed    int
	New          int
	Duplicates   int
	FirstRun     bool
	Matched      int
	Notified     int
	NotifyFailed int

	PersistenceFailures []*diff.PersistenceError
	// Err is set when the entry yielded no data this sweep or when some of
	// its postings could not be recorded.
	Err           error
	FailureReason string
}

// processEntry runs one watch entry end to end. Failures stay inside the
// returned result so sibling entries are never affected.
func (s *Sweeper) processEntry(
	ctx context.Context,
	log logger.Logger,
	resolver ats.Resolver,
	spec model.FilterSpec,
	entry model.WatchEntry,
) EntryResult {
	ctx, cancel := context.WithTimeout(ctx, s.opts.EntryTimeout)
	defer cancel()

	r := EntryResult{Name: entry.Name}
	log = log.With(logger.String("organization", entry.Name))

	res, err := resolver.Resolve(ctx, entry)
	if err != nil {
		return r.fail(ctx, log, metrics.ReasonResolution, "career page unreachable, skipping entry this sweep", err)
	}
	r.Resolution = res

	adapter := s.deps.Registry.For(res)
	fetched, err := adapter.Fetch(ctx, res)
	if err != nil {
		return r.fail(ctx, log, metrics.ReasonFetch, "fetch failed, skipping entry this sweep", err)
	}
	r.Resolution.Kind = adapter.Kind()
	log = log.With(
		logger.String("source", string(adapter.Kind())),
		logger.String("confidence", string(res.Confidence)),
	)

	postings, malformed := normalize.Batch(fetched, normalize.Org{Name: entry.Name, Source: adapter.Kind()})
	r.Fetched = len(fetched.Postings)
	r.Malformed = len(malformed)
	for _, m := range malformed {
		log.Warn("skipping malformed posting", logger.Error(m))
	}

	part, err := s.deps.Engine.Partition(ctx, entry.Name, postings)
	if err != nil {
		return r.fail(ctx, log, metrics.ReasonPersistence, "seen store unavailable, skipping entry this sweep", err)
	}
	r.FirstRun = part.FirstRun
	if part.FirstRun && len(part.New) > 0 {
		log.Warn("first sweep for organization, every current posting is new",
			logger.Int("new", len(part.New)),
			logger.Bool("alerts_suppressed", s.opts.SuppressFirstRunAlerts),
		)
	}

	committed, err := s.deps.Engine.Commit(ctx, part.New)
	if err != nil {
		r.Err = err
		r.FailureReason = metrics.ReasonPersistence
		r.PersistenceFailures = committed.Failed
	}
	r.New = len(committed.Committed)
	r.Duplicates = len(committed.Duplicates)

	if part.FirstRun && s.opts.SuppressFirstRunAlerts {
		return r
	}

	now := s.now()
	for _, p := range committed.Committed {
		if step := filter.Explain(p, spec, now); step != filter.StepNone {
			log.Debug("posting filtered out",
				logger.String("external_id", p.ExternalID),
				logger.String("title", p.Title),
				logger.String("step", string(step)),
			)
			continue
		}
		r.Matched++
		if err := s.deps.Notifier.Send(ctx, p); err != nil {
			r.NotifyFailed++
			log.Warn("notification failed, posting stays recorded",
				logger.String("external_id", p.ExternalID),
				logger.Error(err),
			)
			continue
		}
		r.Notified++
	}

	log.Info("entry processed",
		logger.Int("fetched", r.Fetched),
		logger.Int("malformed", r.Malformed),
		logger.Int("seen", len(part.Seen)),
		logger.Int("new", r.New),
		logger.Int("matched", r.Matched),
		logger.Int("notified", r.Notified),
	)
	return r
}

func (r EntryResult) fail(ctx context.Context, log logger.Logger, reason, msg string, err error) EntryResult {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		reason = metrics.ReasonTimeout
	}
	r.Err = err
	r.FailureReason = reason
	log.Warn(msg, logger.String("reason", reason), logger.Error(err))
	return r
}
