package ats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"jobmate/careerwatch-service/internal/logger"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultUserAgent    = "careerwatch/1.0 (+https://github.com/jobmate)"
	maxBodyBytes        = 8 << 20
	maxRetryAttempts    = 3
)

// ClientConfig configures the HTTP client shared by the detector and adapters.
type ClientConfig struct {
	// Timeout bounds every single request, including redirects.
	Timeout   time.Duration
	UserAgent string
	// HTTPClient overrides the underlying client (tests inject fake transports).
	HTTPClient *http.Client
	// InitialBackoff is the delay before the first retry of a transient failure.
	InitialBackoff time.Duration
}

// Client performs GET requests against career pages and ATS APIs.
type Client struct {
	http           *http.Client
	timeout        time.Duration
	userAgent      string
	initialBackoff time.Duration
	log            logger.Logger
}

// NewClient constructs a Client. A nil logger disables retry logging.
func NewClient(cfg ClientConfig, log logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		http:           hc,
		timeout:        cfg.Timeout,
		userAgent:      cfg.UserAgent,
		initialBackoff: cfg.InitialBackoff,
		log:            log,
	}
}

// page is a fully read upstream response.
type page struct {
	StatusCode int
	FinalURL   string
	Body       []byte
}

// get performs a single GET bounded by the client timeout. Non-2xx statuses
// are returned as a page, not as an error.
func (c *Client) get(ctx context.Context, rawURL, accept string) (*page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &page{StatusCode: resp.StatusCode, FinalURL: finalURL, Body: body}, nil
}

// getOK fetches rawURL, retrying network failures, 429 and 5xx with
// exponential backoff. Any other non-2xx status fails immediately with a
// *statusError.
func (c *Client) getOK(ctx context.Context, rawURL, accept string) (*page, error) {
	var result *page

	op := func() error {
		p, err := c.get(ctx, rawURL, accept)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if p.StatusCode >= 200 && p.StatusCode < 300 {
			result = p
			return nil
		}
		serr := &statusError{StatusCode: p.StatusCode, URL: rawURL}
		if p.StatusCode == http.StatusTooManyRequests || p.StatusCode >= 500 {
			return serr
		}
		return backoff.Permanent(serr)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxElapsedTime = c.timeout
	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxRetryAttempts-1), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.log.Debug("retrying upstream request",
			logger.String("url", rawURL),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// statusOf extracts the HTTP status carried by err, or 0.
func statusOf(err error) int {
	var serr *statusError
	if errors.As(err, &serr) {
		return serr.StatusCode
	}
	return 0
}
