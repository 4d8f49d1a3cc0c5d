package ats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"jobmate/careerwatch-service/internal/model"
)

const (
	leverBaseURL  = "https://api.lever.co/v0/postings"
	leverPageSize = 100
	leverMaxPages = 50 // 5000 postings per board
)

// LeverAdapter reads the public Lever Postings API, paging with skip/limit.
type LeverAdapter struct {
	// BaseURL is overridable for tests.
	BaseURL  string
	PageSize int
	client   *Client
}

// NewLeverAdapter constructs an adapter on the shared client.
func NewLeverAdapter(c *Client) *LeverAdapter {
	return &LeverAdapter{BaseURL: leverBaseURL, PageSize: leverPageSize, client: c}
}

// Kind implements Adapter.
func (a *LeverAdapter) Kind() model.Kind { return model.KindLever }

// leverPosting mirrors a single Lever posting.
type leverPosting struct {
	ID         flexString      `json:"id"`
	Text       string          `json:"text"`
	HostedURL  string          `json:"hostedUrl"`
	ApplyURL   string          `json:"applyUrl"`
	CreatedAt  flexString      `json:"createdAt"`
	Categories leverCategories `json:"categories"`
}

type leverCategories struct {
	Location     flexNames  `json:"location"`
	AllLocations flexNames  `json:"allLocations"`
	Department   flexString `json:"department"`
	Team         flexString `json:"team"`
}

// Fetch implements Adapter. Pages are requested until one comes back short.
func (a *LeverAdapter) Fetch(ctx context.Context, res model.Resolution) (*FetchResult, error) {
	pageSize := a.PageSize
	if pageSize <= 0 {
		pageSize = leverPageSize
	}

	result := &FetchResult{BaseURL: res.FinalURL}
	seenIDs := make(map[string]struct{})
	index := 0

	for page := 0; page < leverMaxPages; page++ {
		// A failed later page fails the board: a partial listing would make
		// the missing postings look new again on the next complete fetch.
		batch, err := a.fetchPage(ctx, res.BoardID, page*pageSize, pageSize)
		if err != nil {
			return nil, err
		}

		// Malformed entries count as progress: a page of them still moved the
		// cursor. Only a page made entirely of repeated ids stops the loop.
		progress := 0
		for _, raw := range batch {
			var p leverPosting
			if err := json.Unmarshal(raw, &p); err != nil {
				result.skip(a.Kind(), index, "", "undecodable posting", err)
				index++
				progress++
				continue
			}
			index++
			if p.ID != "" {
				if _, dup := seenIDs[string(p.ID)]; dup {
					continue
				}
				seenIDs[string(p.ID)] = struct{}{}
			}
			progress++
			result.Postings = append(result.Postings, RawPosting{
				NativeID:   string(p.ID),
				Title:      p.Text,
				Department: firstNonEmpty(string(p.Categories.Department), string(p.Categories.Team)),
				Location:   joinLocations(p.Categories.Location, p.Categories.AllLocations),
				URL:        firstNonEmpty(p.HostedURL, p.ApplyURL),
				PostedAt:   string(p.CreatedAt),
			})
		}

		// A short page is the last one. A page of nothing but repeats means
		// the board ignores skip and would loop forever.
		if len(batch) < pageSize || progress == 0 {
			break
		}
	}
	return result, nil
}

func (a *LeverAdapter) fetchPage(ctx context.Context, board string, skip, limit int) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("mode", "json")
	params.Set("skip", strconv.Itoa(skip))
	params.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/%s?%s", a.BaseURL, url.PathEscape(board), params.Encode())

	p, err := a.client.getOK(ctx, endpoint, "application/json")
	if err != nil {
		return nil, &FetchError{Kind: a.Kind(), URL: endpoint, StatusCode: statusOf(err), Cause: err}
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(p.Body, &batch); err != nil {
		return nil, &FetchError{Kind: a.Kind(), URL: endpoint, Cause: fmt.Errorf("json unmarshal: %w", err)}
	}
	return batch, nil
}
