package ats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"jobmate/careerwatch-service/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// GreenhouseAdapter reads the public Greenhouse Job Board API. The endpoint
// returns the whole board in one response.
type GreenhouseAdapter struct {
	// BaseURL is overridable for tests.
	BaseURL string
	client  *Client
}

// NewGreenhouseAdapter constructs an adapter on the shared client.
func NewGreenhouseAdapter(c *Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{BaseURL: greenhouseBaseURL, client: c}
}

// Kind implements Adapter.
func (a *GreenhouseAdapter) Kind() model.Kind { return model.KindGreenhouse }

// greenhouseResponse mirrors the top-level Greenhouse JSON response.
type greenhouseResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

// greenhouseJob mirrors a single Greenhouse job listing.
type greenhouseJob struct {
	ID             flexString `json:"id"`
	Title          string     `json:"title"`
	AbsoluteURL    string     `json:"absolute_url"`
	Location       flexNames  `json:"location"`
	Departments    flexNames  `json:"departments"`
	FirstPublished string     `json:"first_published"`
	UpdatedAt      string     `json:"updated_at"`
}

// Fetch implements Adapter.
func (a *GreenhouseAdapter) Fetch(ctx context.Context, res model.Resolution) (*FetchResult, error) {
	endpoint := fmt.Sprintf("%s/%s/jobs", a.BaseURL, url.PathEscape(res.BoardID))

	p, err := a.client.getOK(ctx, endpoint, "application/json")
	if err != nil {
		return nil, &FetchError{Kind: a.Kind(), URL: endpoint, StatusCode: statusOf(err), Cause: err}
	}

	var apiResp greenhouseResponse
	if err := json.Unmarshal(p.Body, &apiResp); err != nil {
		return nil, &FetchError{Kind: a.Kind(), URL: endpoint, Cause: fmt.Errorf("json unmarshal: %w", err)}
	}

	result := &FetchResult{BaseURL: res.FinalURL}
	for i, raw := range apiResp.Jobs {
		var j greenhouseJob
		if err := json.Unmarshal(raw, &j); err != nil {
			result.skip(a.Kind(), i, "", "undecodable job", err)
			continue
		}
		var department string
		if len(j.Departments) > 0 {
			department = j.Departments[0]
		}
		result.Postings = append(result.Postings, RawPosting{
			NativeID:   string(j.ID),
			Title:      j.Title,
			Department: department,
			Location:   joinLocations(j.Location),
			URL:        j.AbsoluteURL,
			// first_published is when the job went live; updated_at moves on edits
			PostedAt: firstNonEmpty(j.FirstPublished, j.UpdatedAt),
		})
	}
	return result, nil
}
