// Package diff classifies normalized postings as new or already seen and
// durably records the new ones.
package diff

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"jobmate/careerwatch-service/internal/logger"
	"jobmate/careerwatch-service/internal/model"
)

const (
	defaultSeenBatch     = 500
	defaultCommitRetries = 3
)

// SeenStore is the durable set of posting identities already processed.
// Implementations index (organization, external id) so existence checks never
// load the whole history.
type SeenStore interface {
	// Seen reports which of ids are already recorded for org.
	Seen(ctx context.Context, org string, ids []string) (map[string]bool, error)
	// Record durably writes rec once. inserted is false when the identity was
	// already present, which is not an error.
	Record(ctx context.Context, rec model.SeenRecord) (inserted bool, err error)
	// HasOrganization reports whether any record exists for org.
	HasOrganization(ctx context.Context, org string) (bool, error)
}

// Partition is the classification of one organization's candidates.
type Partition struct {
	Organization string
	New          []model.Posting
	Seen         []model.Posting
	// FirstRun is set when nothing was ever recorded for the organization:
	// every current posting is new and alert volume may be high.
	FirstRun bool
	// Collapsed counts candidates dropped as duplicates within the batch.
	Collapsed int
}

// CommitResult splits a commit into what was durably recorded by this call,
// what another writer recorded first, and what failed.
type CommitResult struct {
	Committed  []model.Posting
	Duplicates []model.Posting
	Failed     []*PersistenceError
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for FirstSeenAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRetryBackoff sets the initial delay between write retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *Engine) { e.retryInitial = d }
}

// Engine runs partition and commit against a SeenStore. Commits for one
// organization never interleave within the process.
type Engine struct {
	store        SeenStore
	log          logger.Logger
	now          func() time.Time
	retryInitial time.Duration
	seenBatch    int

	mu       sync.Mutex
	orgLocks map[string]*sync.Mutex
}

// NewEngine constructs an Engine over store.
func NewEngine(store SeenStore, log logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	e := &Engine{
		store:        store,
		log:          log,
		now:          time.Now,
		retryInitial: 200 * time.Millisecond,
		seenBatch:    defaultSeenBatch,
		orgLocks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Partition classifies candidates of org against the seen store. A posting
// is new iff its identity is not recorded at the moment of evaluation.
// Candidates repeating an identity already in the batch are dropped; the
// first occurrence wins. New postings get FirstSeenAt set.
func (e *Engine) Partition(ctx context.Context, org string, candidates []model.Posting) (*Partition, error) {
	part := &Partition{Organization: org}

	unique := make([]model.Posting, 0, len(candidates))
	index := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		if p.Organization != org {
			e.log.Warn("dropping posting of another organization",
				logger.String("organization", org),
				logger.String("posting_organization", p.Organization),
				logger.String("external_id", p.ExternalID),
			)
			continue
		}
		if _, dup := index[p.ExternalID]; dup {
			part.Collapsed++
			continue
		}
		index[p.ExternalID] = struct{}{}
		unique = append(unique, p)
	}

	has, err := e.store.HasOrganization(ctx, org)
	if err != nil {
		return nil, &PersistenceError{Op: "has_organization", Organization: org, Cause: err}
	}
	part.FirstRun = !has

	seen := make(map[string]bool, len(unique))
	if has {
		for start := 0; start < len(unique); start += e.seenBatch {
			end := min(start+e.seenBatch, len(unique))
			ids := make([]string, 0, end-start)
			for _, p := range unique[start:end] {
				ids = append(ids, p.ExternalID)
			}
			found, err := e.store.Seen(ctx, org, ids)
			if err != nil {
				return nil, &PersistenceError{Op: "seen", Organization: org, Cause: err}
			}
			for id, ok := range found {
				if ok {
					seen[id] = true
				}
			}
		}
	}

	firstSeen := e.now().UTC().Truncate(time.Microsecond)
	for _, p := range unique {
		if seen[p.ExternalID] {
			part.Seen = append(part.Seen, p)
			continue
		}
		p.FirstSeenAt = firstSeen
		part.New = append(part.New, p)
	}
	return part, nil
}

// Commit records a SeenRecord per posting, one durable write each. A failure
// never rolls back earlier successes. Each failing write is retried with
// backoff and then reported in CommitResult.Failed; the returned error joins
// those failures. Postings already recorded by a concurrent writer land in
// Duplicates and must not be alerted again.
func (e *Engine) Commit(ctx context.Context, postings []model.Posting) (*CommitResult, error) {
	result := &CommitResult{}
	var errs []error

	orgs, groups := groupByOrganization(postings)
	for _, org := range orgs {
		group := groups[org]
		unlock := e.lockOrganization(org)
		for _, p := range group {
			if p.FirstSeenAt.IsZero() {
				p.FirstSeenAt = e.now().UTC().Truncate(time.Microsecond)
			}
			inserted, err := e.record(ctx, model.NewSeenRecord(p))
			if err != nil {
				perr := &PersistenceError{Op: "record", Organization: p.Organization, ExternalID: p.ExternalID, Cause: err}
				result.Failed = append(result.Failed, perr)
				errs = append(errs, perr)
				continue
			}
			if inserted {
				result.Committed = append(result.Committed, p)
			} else {
				result.Duplicates = append(result.Duplicates, p)
			}
		}
		unlock()
	}
	return result, errors.Join(errs...)
}

// record writes rec with retries. A write may land durably and still report
// an error (a lost commit acknowledgement), so once an attempt has failed an
// existing row found by a retry counts as inserted by this call.
func (e *Engine) record(ctx context.Context, rec model.SeenRecord) (bool, error) {
	var inserted, attemptFailed bool
	op := func() error {
		ok, err := e.store.Record(ctx, rec)
		if err != nil {
			attemptFailed = true
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		inserted = ok || attemptFailed
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retryInitial
	policy := backoff.WithContext(backoff.WithMaxRetries(b, defaultCommitRetries), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		e.log.Warn("seen store write failed, retrying",
			logger.String("organization", rec.Organization),
			logger.String("external_id", rec.ExternalID),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	})
	return inserted, err
}

func (e *Engine) lockOrganization(org string) func() {
	e.mu.Lock()
	l, ok := e.orgLocks[org]
	if !ok {
		l = &sync.Mutex{}
		e.orgLocks[org] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// groupByOrganization keeps input order, both of organizations and of
// postings inside each one.
func groupByOrganization(postings []model.Posting) ([]string, map[string][]model.Posting) {
	var orgs []string
	groups := make(map[string][]model.Posting)
	for _, p := range postings {
		if _, ok := groups[p.Organization]; !ok {
			orgs = append(orgs, p.Organization)
		}
		groups[p.Organization] = append(groups[p.Organization], p)
	}
	return orgs, groups
}
