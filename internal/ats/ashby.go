package ats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"jobmate/careerwatch-service/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

// AshbyAdapter reads the public Ashby posting API.
type AshbyAdapter struct {
	// BaseURL is overridable for tests.
	BaseURL string
	client  *Client
}

// NewAshbyAdapter constructs an adapter on the shared client.
func NewAshbyAdapter(c *Client) *AshbyAdapter {
	return &AshbyAdapter{BaseURL: ashbyBaseURL, client: c}
}

// Kind implements Adapter.
func (a *AshbyAdapter) Kind() model.Kind { return model.KindAshby }

type ashbyResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

type ashbyJob struct {
	ID                 flexString `json:"id"`
	Title              string     `json:"title"`
	Department         flexString `json:"department"`
	Team               flexString `json:"team"`
	Location           flexNames  `json:"location"`
	SecondaryLocations flexNames  `json:"secondaryLocations"`
	JobURL             string     `json:"jobUrl"`
	URL                string     `json:"url"`
	ApplyURL           string     `json:"applyUrl"`
	PublishedAt        string     `json:"publishedAt"`
	IsListed           *bool      `json:"isListed"`
}

// Fetch implements Adapter. Unlisted jobs are dropped: they are not openings
// the organization advertises.
func (a *AshbyAdapter) Fetch(ctx context.Context, res model.Resolution) (*FetchResult, error) {
	endpoint := fmt.Sprintf("%s/%s?includeCompensation=false", a.BaseURL, url.PathEscape(res.BoardID))

	p, err := a.client.getOK(ctx, endpoint, "application/json")
	if err != nil {
		return nil, &FetchError{Kind: a.Kind(), URL: endpoint, StatusCode: statusOf(err), Cause: err}
	}

	var apiResp ashbyResponse
	if err := json.Unmarshal(p.Body, &apiResp); err != nil {
		return nil, &FetchError{Kind: a.Kind(), URL: endpoint, Cause: fmt.Errorf("json unmarshal: %w", err)}
	}

	result := &FetchResult{BaseURL: res.FinalURL}
	for i, raw := range apiResp.Jobs {
		var j ashbyJob
		if err := json.Unmarshal(raw, &j); err != nil {
			result.skip(a.Kind(), i, "", "undecodable job", err)
			continue
		}
		if j.IsListed != nil && !*j.IsListed {
			continue
		}
		result.Postings = append(result.Postings, RawPosting{
			NativeID:   string(j.ID),
			Title:      j.Title,
			Department: firstNonEmpty(string(j.Department), string(j.Team)),
			Location:   joinLocations(j.Location, j.SecondaryLocations),
			URL:        firstNonEmpty(j.JobURL, j.URL, j.ApplyURL),
			PostedAt:   j.PublishedAt,
		})
	}
	return result, nil
}
