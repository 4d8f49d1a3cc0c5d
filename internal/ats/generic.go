package ats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobmate/careerwatch-service/internal/model"
)

const (
	minLinkTextLen = 3
	maxLinkTextLen = 200
)

// jobLinkPattern marks a link as job-like when found in its path or text.
var jobLinkPattern = regexp.MustCompile(`(?i)job|position|role|career|opening`)

// aggregatorHosts are never postings of the watched organization.
var aggregatorHosts = []string{"linkedin.com", "indeed.com", "glassdoor.", "facebook.com", "twitter.com", "x.com"}

// GenericAdapter scrapes the rendered HTML of a career page. It reads
// schema.org JobPosting JSON-LD when the page has it and falls back to anchor
// heuristics otherwise. Pages rendered client-side yield little or nothing;
// that is an accepted limitation, not an error.
type GenericAdapter struct {
	client *Client
}

// NewGenericAdapter constructs an adapter on the shared client.
func NewGenericAdapter(c *Client) *GenericAdapter {
	return &GenericAdapter{client: c}
}

// Kind implements Adapter.
func (a *GenericAdapter) Kind() model.Kind { return model.KindGeneric }

// Fetch implements Adapter. No NativeID is ever set: identity is derived
// from the posting URL during normalization.
func (a *GenericAdapter) Fetch(ctx context.Context, res model.Resolution) (*FetchResult, error) {
	pageURL := firstNonEmpty(res.FinalURL, res.SeedURL)

	p, err := a.client.getOK(ctx, pageURL, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, &FetchError{Kind: a.Kind(), URL: pageURL, StatusCode: statusOf(err), Cause: err}
	}

	base, err := url.Parse(p.FinalURL)
	if err != nil {
		return nil, &FetchError{Kind: a.Kind(), URL: pageURL, Cause: fmt.Errorf("parse page url: %w", err)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, &FetchError{Kind: a.Kind(), URL: pageURL, Cause: fmt.Errorf("parse html: %w", err)}
	}

	result := &FetchResult{BaseURL: p.FinalURL}
	extractJSONLD(doc, base, result)
	if len(result.Postings) == 0 {
		extractAnchors(doc, base, result)
	}
	return result, nil
}

// extractJSONLD collects every JobPosting object found in ld+json scripts.
func extractJSONLD(doc *goquery.Document, base *url.URL, result *FetchResult) {
	index := 0
	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		var data any
		if err := json.Unmarshal([]byte(text), &data); err != nil {
			// Broken structured data on a page is common; anchors still run.
			return
		}
		for _, obj := range jobPostingObjects(data) {
			title := stringField(obj, "title", "name")
			href := stringField(obj, "url", "sameAs")
			if title == "" || href == "" {
				result.skip(model.KindGeneric, index, href, "JobPosting without title or url", nil)
				index++
				continue
			}
			abs, ok := resolveHTTP(base, href)
			if !ok {
				result.skip(model.KindGeneric, index, href, "JobPosting url is not http(s)", nil)
				index++
				continue
			}
			index++
			result.Postings = append(result.Postings, RawPosting{
				Title:      title,
				Department: stringField(obj, "occupationalCategory", "industry"),
				Location:   jobLocation(obj),
				URL:        abs,
				PostedAt:   stringField(obj, "datePosted"),
			})
		}
	})
}

// jobPostingObjects walks arrays and @graph containers for JobPosting nodes.
func jobPostingObjects(data any) []map[string]any {
	var out []map[string]any
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			out = append(out, jobPostingObjects(item)...)
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			out = append(out, jobPostingObjects(graph)...)
		}
		if isType(v["@type"], "JobPosting") {
			out = append(out, v)
		}
	}
	return out
}

func isType(t any, want string) bool {
	switch v := t.(type) {
	case string:
		return strings.EqualFold(v, want)
	case []any:
		for _, item := range v {
			if isType(item, want) {
				return true
			}
		}
	}
	return false
}

// stringField returns the first non-blank string value among keys.
func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]any:
			if s := stringField(v, "name", "value", "@id"); s != "" {
				return s
			}
		}
	}
	return ""
}

// jobLocation flattens jobLocation places into free text, keeping the
// published wording.
func jobLocation(obj map[string]any) string {
	var places []any
	switch v := obj["jobLocation"].(type) {
	case []any:
		places = v
	case map[string]any:
		places = []any{v}
	}

	var locs []string
	for _, place := range places {
		pm, ok := place.(map[string]any)
		if !ok {
			continue
		}
		if addr, ok := pm["address"].(map[string]any); ok {
			var parts []string
			for _, key := range []string{"addressLocality", "addressRegion", "addressCountry"} {
				if s := stringField(addr, key); s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				locs = append(locs, strings.Join(parts, ", "))
				continue
			}
		}
		if s := stringField(pm, "name"); s != "" {
			locs = append(locs, s)
		}
	}
	if t, _ := obj["jobLocationType"].(string); strings.EqualFold(t, "TELECOMMUTE") {
		locs = append(locs, "Remote")
	}
	return joinLocations(locs)
}

// extractAnchors is the last resort: any link whose path or text looks like a
// job opening.
func extractAnchors(doc *goquery.Document, base *url.URL, result *FetchResult) {
	self := strings.TrimSuffix(base.String(), "/")
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || hasScheme(href, "mailto", "javascript", "tel") {
			return
		}
		abs, ok := resolveHTTP(base, href)
		if !ok || strings.TrimSuffix(abs, "/") == self {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}

		text := strings.Join(strings.Fields(s.Text()), " ")
		if len(text) < minLinkTextLen || len(text) > maxLinkTextLen {
			return
		}
		u, _ := url.Parse(abs)
		if !jobLinkPattern.MatchString(u.Path) && !jobLinkPattern.MatchString(text) {
			return
		}
		if isAggregator(u.Hostname()) {
			return
		}

		seen[abs] = struct{}{}
		result.Postings = append(result.Postings, RawPosting{
			Title:    text,
			Location: cardLocation(s),
			URL:      abs,
		})
	})
}

// cardLocation looks for a location element in the listing card around a link.
func cardLocation(link *goquery.Selection) string {
	card := link.Parent().Closest("li, tr, article, [class*='job'], [class*='position'], [class*='opening']")
	if card.Length() == 0 {
		return ""
	}
	loc := card.Find("[class*='location'], [data-location]").First()
	if loc.Length() == 0 {
		return ""
	}
	if v, ok := loc.Attr("data-location"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.Join(strings.Fields(loc.Text()), " ")
}

func resolveHTTP(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

func hasScheme(href string, schemes ...string) bool {
	lower := strings.ToLower(href)
	for _, s := range schemes {
		if strings.HasPrefix(lower, s+":") {
			return true
		}
	}
	return false
}

func isAggregator(host string) bool {
	host = strings.ToLower(host)
	for _, a := range aggregatorHosts {
		if strings.HasSuffix(a, ".") {
			if strings.Contains(host, a) {
				return true
			}
			continue
		}
		if hostIs(host, a) {
			return true
		}
	}
	return false
}
