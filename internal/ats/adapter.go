// Package ats detects which Applicant Tracking System serves a career page
// and fetches its postings through that provider's public API, or by
// scraping the page when no provider is recognised.
package ats

import (
	"context"
	"fmt"

	"jobmate/careerwatch-service/internal/model"
)

// RawPosting is a posting as an adapter read it, before normalization.
// NativeID is empty when the upstream offers no stable identifier.
type RawPosting struct {
	NativeID   string
	Title      string
	Department string
	Location   string
	URL        string
	PostedAt   string
}

// FetchResult is everything one adapter fetch produced. Malformed postings
// are reported alongside the usable ones instead of failing the fetch.
type FetchResult struct {
	Postings  []RawPosting
	Malformed []*MalformedPostingError
	// BaseURL is what relative posting URLs resolve against.
	BaseURL string
}

func (r *FetchResult) skip(kind model.Kind, index int, ref, reason string, cause error) {
	r.Malformed = append(r.Malformed, &MalformedPostingError{
		Kind:   kind,
		Index:  index,
		Ref:    ref,
		Reason: reason,
		Cause:  cause,
	})
}

// Adapter fetches every listed opening for one resolved board. Adapters never
// filter: that is the filter package's job.
type Adapter interface {
	Kind() model.Kind
	Fetch(ctx context.Context, res model.Resolution) (*FetchResult, error)
}

// Registry maps each Kind to its Adapter.
type Registry struct {
	adapters map[model.Kind]Adapter
}

// NewRegistry builds a Registry. A generic adapter is required because it
// serves every resolution that lacks a usable board id.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[model.Kind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Kind()] = a
	}
	if _, ok := r.adapters[model.KindGeneric]; !ok {
		return nil, fmt.Errorf("registry: no %s adapter", model.KindGeneric)
	}
	return r, nil
}

// NewDefaultRegistry wires the four built-in adapters onto one client.
func NewDefaultRegistry(c *Client) *Registry {
	r, _ := NewRegistry(
		NewGreenhouseAdapter(c),
		NewLeverAdapter(c),
		NewAshbyAdapter(c),
		NewGenericAdapter(c),
	)
	return r
}

// For returns the adapter serving res. Structured kinds without a board id
// fall back to the generic scraper.
func (r *Registry) For(res model.Resolution) Adapter {
	if res.Kind != model.KindGeneric && res.BoardID != "" {
		if a, ok := r.adapters[res.Kind]; ok {
			return a
		}
	}
	return r.adapters[model.KindGeneric]
}

// Fetch dispatches res to its adapter.
func (r *Registry) Fetch(ctx context.Context, res model.Resolution) (*FetchResult, error) {
	return r.For(res).Fetch(ctx, res)
}
