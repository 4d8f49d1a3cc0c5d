// Package filter decides which new postings are worth an alert.
package filter

import (
	"strings"
	"time"

	"jobmate/careerwatch-service/internal/model"
)

// Step names the predicate a posting failed.
type Step string

const (
	StepNone     Step = ""
	StepLocation Step = "location"
	StepLevel    Step = "level"
	StepTitle    Step = "title_keywords"
	StepExclude  Step = "exclude_keywords"
	StepRecency  Step = "recency"
)

// Matches reports whether p passes every predicate of spec. It has no side
// effects; the recency cutoff is measured from the current time.
func Matches(p model.Posting, spec model.FilterSpec) bool {
	return Explain(p, spec, time.Now()) == StepNone
}

// Explain returns the first step p fails, in evaluation order, or StepNone
// when p passes. now anchors the recency cutoff.
func Explain(p model.Posting, spec model.FilterSpec, now time.Time) Step {
	titleDept := p.Title + " " + p.Department

	if !locationOK(p.Location, spec) {
		return StepLocation
	}
	// An empty level list matches nothing: the level check is never skipped.
	if !ContainsAny(titleDept, spec.LevelKeywords) {
		return StepLevel
	}
	if len(spec.TitleKeywords) > 0 && !ContainsAny(titleDept, spec.TitleKeywords) {
		return StepTitle
	}
	if ContainsAny(titleDept, spec.ExcludeKeywords) {
		return StepExclude
	}
	if spec.MaxDaysSincePosted > 0 && p.PostedAt != nil {
		cutoff := now.AddDate(0, 0, -spec.MaxDaysSincePosted)
		if p.PostedAt.Before(cutoff) {
			return StepRecency
		}
	}
	return StepNone
}

// locationOK implements the location step. An empty keyword list means no
// restriction, unless RequireLocationFieldMatch demands a keyword hit on the
// location field, which then nothing can satisfy.
func locationOK(location string, spec model.FilterSpec) bool {
	if strings.TrimSpace(location) == "" {
		return spec.AllowEmptyLocation && !spec.RequireLocationFieldMatch
	}
	if len(spec.Locations) == 0 {
		return !spec.RequireLocationFieldMatch
	}
	return ContainsAny(location, spec.Locations)
}

// ContainsAny returns true if any keyword appears (case-insensitive) anywhere
// in text. Keywords are substrings, not whole words: "SWE" matches
// "Backend SWE Intern". Empty keywords are ignored.
func ContainsAny(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
