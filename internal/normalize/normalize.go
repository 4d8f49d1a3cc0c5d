// Package normalize turns adapter output into canonical postings with a
// stable identity.
package normalize

import (
	"errors"
	"net/url"
	"strings"

	"jobmate/careerwatch-service/internal/ats"
	"jobmate/careerwatch-service/internal/model"
)

// DerivedIDPrefix marks identities computed from the posting URL. Such
// identities are weaker than native ones: a cosmetic URL change upstream
// makes an old posting look new.
const DerivedIDPrefix = "url:"

// Org is the organization context a raw posting is normalized in.
type Org struct {
	// Name comes from the watchlist and is the first half of every identity.
	Name string
	// BaseURL resolves relative posting URLs.
	BaseURL string
	Source  model.Kind
}

// Normalize maps one raw posting to canonical form. FirstSeenAt is left zero:
// the diff engine assigns it.
func Normalize(raw ats.RawPosting, org Org) (model.Posting, error) {
	p := model.Posting{
		Organization: org.Name,
		Title:        collapse(raw.Title),
		Department:   collapse(raw.Department),
		Location:     collapse(raw.Location),
		Source:       org.Source,
	}

	ref := firstNonBlank(raw.NativeID, raw.URL)
	if p.Title == "" {
		return model.Posting{}, malformed(org, ref, "missing title")
	}

	abs, err := absoluteURL(raw.URL, org.BaseURL)
	if err != nil {
		return model.Posting{}, &ats.MalformedPostingError{Kind: org.Source, Index: -1, Ref: ref, Reason: "bad url", Cause: err}
	}
	if abs == "" {
		return model.Posting{}, malformed(org, ref, "missing url")
	}
	p.URL = abs

	if id := strings.TrimSpace(raw.NativeID); id != "" {
		p.ExternalID = id
	} else {
		canonical, err := CanonicalURL(abs)
		if err != nil {
			return model.Posting{}, &ats.MalformedPostingError{Kind: org.Source, Index: -1, Ref: ref, Reason: "url has no identity", Cause: err}
		}
		p.ExternalID = DerivedIDPrefix + canonical
		p.DerivedID = true
	}

	if t, ok := ParsePostedAt(raw.PostedAt); ok {
		p.PostedAt = &t
	}
	return p, nil
}

// Batch normalizes a whole fetch. Unusable postings are returned as errors
// next to the usable ones, together with what the adapter already rejected.
func Batch(result *ats.FetchResult, org Org) ([]model.Posting, []*ats.MalformedPostingError) {
	if result == nil {
		return nil, nil
	}
	if org.BaseURL == "" {
		org.BaseURL = result.BaseURL
	}

	postings := make([]model.Posting, 0, len(result.Postings))
	skipped := append([]*ats.MalformedPostingError(nil), result.Malformed...)
	for i, raw := range result.Postings {
		p, err := Normalize(raw, org)
		if err != nil {
			var merr *ats.MalformedPostingError
			if errors.As(err, &merr) {
				merr.Index = i
				skipped = append(skipped, merr)
			}
			continue
		}
		postings = append(postings, p)
	}
	return postings, skipped
}

func malformed(org Org, ref, reason string) *ats.MalformedPostingError {
	return &ats.MalformedPostingError{Kind: org.Source, Index: -1, Ref: ref, Reason: reason}
}

// absoluteURL resolves href against base. An empty href yields "".
func absoluteURL(href, base string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if !ref.IsAbs() {
		b, err := url.Parse(strings.TrimSpace(base))
		if err != nil || !b.IsAbs() {
			return "", errRelativeWithoutBase
		}
		ref = b.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", errNotHTTP
	}
	return ref.String(), nil
}

// collapse trims s and folds internal whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
