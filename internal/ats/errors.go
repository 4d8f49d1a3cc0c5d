package ats

import (
	"fmt"

	"jobmate/careerwatch-service/internal/model"
)

// ResolutionError means the seed URL of a watch entry could not be fetched
// while detecting its ATS. The entry is skipped for the current sweep only.
type ResolutionError struct {
	URL        string
	StatusCode int
	Cause      error
}

func (e *ResolutionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("resolve %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("resolve %s: %v", e.URL, e.Cause)
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

// FetchError means an adapter could not retrieve any postings. The caller
// treats the entry as "no data this cycle".
type FetchError struct {
	Kind       model.Kind
	URL        string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s postings from %s: HTTP %d", e.Kind, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s postings from %s: %v", e.Kind, e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// MalformedPostingError reports one upstream posting that could not be used.
// Its siblings from the same fetch are unaffected.
type MalformedPostingError struct {
	Kind   model.Kind
	Index  int    // position in the upstream listing, -1 when unknown
	Ref    string // native id or URL when available
	Reason string
	Cause  error
}

func (e *MalformedPostingError) Error() string {
	ref := e.Ref
	if ref == "" {
		ref = fmt.Sprintf("#%d", e.Index)
	}
	if e.Cause != nil {
		return fmt.Sprintf("malformed %s posting %s: %s: %v", e.Kind, ref, e.Reason, e.Cause)
	}
	return fmt.Sprintf("malformed %s posting %s: %s", e.Kind, ref, e.Reason)
}

func (e *MalformedPostingError) Unwrap() error { return e.Cause }

// statusError carries a non-2xx upstream status through the retry loop.
type statusError struct {
	StatusCode int
	URL        string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}
