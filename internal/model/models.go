// Package model defines shared data structures for the careerwatch service.
package model

import (
	"fmt"
	"time"
)

// Kind identifies the Source Adapter variant that serves a career page.
type Kind string

const (
	KindGreenhouse Kind = "greenhouse"
	KindLever      Kind = "lever"
	KindAshby      Kind = "ashby"
	KindGeneric    Kind = "generic"
)

// ParseKind converts a raw watchlist value to a Kind, returning an error for
// unknown values. The empty string is not a valid kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindGreenhouse, KindLever, KindAshby, KindGeneric:
		return k, nil
	}
	return "", fmt.Errorf("unknown ats kind %q", s)
}

// Confidence records how an AdapterResolution was obtained.
type Confidence string

const (
	// ConfidenceExplicit: kind and board were declared in the watchlist.
	ConfidenceExplicit  Confidence = "explicit"
	// ConfidenceRedirect: inferred from the (redirected) URL of the career page.
	ConfidenceRedirect  Confidence = "redirect"
	// ConfidenceSignature: inferred from a provider signature in the page body.
	ConfidenceSignature Confidence = "signature"
	// ConfidenceFallback: nothing matched; the generic scraper is used.
	ConfidenceFallback  Confidence = "fallback"
)

// WatchEntry is one watched organization from the watchlist.
type WatchEntry struct {
	Name       string
	CareersURL string
	Kind       Kind   // optional, empty when not declared
	BoardID    string // optional
}

// Declared reports whether the entry pins its adapter so detection can be skipped.
func (e WatchEntry) Declared() bool {
	return e.Kind != "" && (e.BoardID != "" || e.Kind == KindGeneric)
}

// Resolution is the ephemeral result of ATS detection for one entry.
type Resolution struct {
	Kind       Kind
	BoardID    string
	Confidence Confidence
	SeedURL    string
	FinalURL   string // after redirects; equals SeedURL when nothing was fetched
}

// Posting is one job opening in canonical form.
type Posting struct {
	Organization string     `json:"organization"`
	ExternalID   string     `json:"externalId"`
	DerivedID    bool       `json:"derivedId,omitempty"` // ExternalID was derived from the URL
	Title        string     `json:"title"`
	Department   string     `json:"department,omitempty"`
	Location     string     `json:"location,omitempty"`
	URL          string     `json:"url"`
	Source       Kind       `json:"source"`
	PostedAt     *time.Time `json:"postedAt,omitempty"`
	FirstSeenAt  time.Time  `json:"firstSeenAt"`
}

// Identity is the canonical deduplication key of a posting.
type Identity struct {
	Organization string
	ExternalID   string
}

// Identity returns the (organization, identifier) pair. Title and location are
// deliberately not part of it: upstream edits must not look like new postings.
func (p Posting) Identity() Identity {
	return Identity{Organization: p.Organization, ExternalID: p.ExternalID}
}

// SeenRecord marks an identity as processed. Write-once, never deleted.
type SeenRecord struct {
	Organization string
	ExternalID   string
	Snapshot     Posting
	FirstSeenAt  time.Time
}

// NewSeenRecord builds the record persisted when p is first classified new.
func NewSeenRecord(p Posting) SeenRecord {
	return SeenRecord{
		Organization: p.Organization,
		ExternalID:   p.ExternalID,
		Snapshot:     p,
		FirstSeenAt:  p.FirstSeenAt,
	}
}

// FilterSpec holds the alerting predicates. Immutable once loaded.
type FilterSpec struct {
	Locations                 []string
	LevelKeywords             []string
	TitleKeywords             []string
	ExcludeKeywords           []string
	MaxDaysSincePosted        int
	AllowEmptyLocation        bool
	RequireLocationFieldMatch bool
}

// RunRecord summarizes one sweep for the runs table.
type RunRecord struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	EntriesChecked int
	EntriesFailed  int
	NewPostings    int
	Notified       int
}
