package ats

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"jobmate/careerwatch-service/internal/logger"
	"jobmate/careerwatch-service/internal/model"
)

// Resolver decides which adapter serves a watch entry.
type Resolver interface {
	Resolve(ctx context.Context, entry model.WatchEntry) (model.Resolution, error)
}

// Detector infers the ATS behind a career page from its redirect target and
// its HTML. Identical inputs always give identical resolutions.
type Detector struct {
	client *Client
	log    logger.Logger
}

// NewDetector constructs a Detector on the shared client.
func NewDetector(c *Client, log logger.Logger) *Detector {
	if log == nil {
		log = logger.NewNop()
	}
	return &Detector{client: c, log: log}
}

// Resolve implements Resolver. Entries that pin their adapter are returned
// without network access. A page that cannot be fetched yields a
// *ResolutionError; a page that matches nothing resolves to the generic
// adapter, which is not an error.
func (d *Detector) Resolve(ctx context.Context, entry model.WatchEntry) (model.Resolution, error) {
	seed := entry.CareersURL
	if entry.Declared() {
		return model.Resolution{
			Kind:       entry.Kind,
			BoardID:    entry.BoardID,
			Confidence: model.ConfidenceExplicit,
			SeedURL:    seed,
			FinalURL:   seed,
		}, nil
	}

	// A seed that already is an ATS board needs no request.
	if kind, board, ok := MatchURL(seed); ok {
		return model.Resolution{
			Kind:       kind,
			BoardID:    board,
			Confidence: model.ConfidenceRedirect,
			SeedURL:    seed,
			FinalURL:   seed,
		}, nil
	}

	p, err := d.client.getOK(ctx, seed, "text/html,application/xhtml+xml")
	if err != nil {
		return model.Resolution{}, &ResolutionError{URL: seed, StatusCode: statusOf(err), Cause: err}
	}

	res := model.Resolution{SeedURL: seed, FinalURL: p.FinalURL}
	if kind, board, ok := MatchURL(p.FinalURL); ok {
		res.Kind, res.BoardID, res.Confidence = kind, board, model.ConfidenceRedirect
		return res, nil
	}
	if kind, board, ok := MatchBody(p.Body); ok {
		res.Kind, res.BoardID, res.Confidence = kind, board, model.ConfidenceSignature
		return res, nil
	}

	d.log.Debug("no ATS signature found, using generic scraper",
		logger.String("organization", entry.Name),
		logger.String("url", p.FinalURL),
	)
	res.Kind, res.Confidence = model.KindGeneric, model.ConfidenceFallback
	return res, nil
}

// RunCache memoizes resolutions by seed URL for the lifetime of one sweep.
// Concurrent lookups of the same seed share one detection. A new RunCache
// must be created per sweep: ATS migrations would otherwise go unnoticed.
type RunCache struct {
	next  Resolver
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cachedResolution
}

type cachedResolution struct {
	res model.Resolution
	err error
}

// NewRunCache wraps next with a per-sweep cache.
func NewRunCache(next Resolver) *RunCache {
	return &RunCache{next: next, entries: make(map[string]cachedResolution)}
}

// Resolve implements Resolver. Declared entries bypass the cache.
func (c *RunCache) Resolve(ctx context.Context, entry model.WatchEntry) (model.Resolution, error) {
	if entry.Declared() {
		return c.next.Resolve(ctx, entry)
	}
	key := entry.CareersURL

	c.mu.Lock()
	hit, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return hit.res, hit.err
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		hit, ok := c.entries[key]
		c.mu.Unlock()
		if ok {
			return hit, nil
		}

		res, err := c.next.Resolve(ctx, entry)
		cr := cachedResolution{res: res, err: err}
		// Cancellation belongs to the caller that triggered it, not to the page.
		if ctx.Err() == nil {
			c.mu.Lock()
			c.entries[key] = cr
			c.mu.Unlock()
		}
		return cr, nil
	})
	cr := v.(cachedResolution)
	return cr.res, cr.err
}
