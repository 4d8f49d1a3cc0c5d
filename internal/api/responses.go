package api

import (
	"time"

	"jobmate/careerwatch-service/internal/model"
	"jobmate/careerwatch-service/internal/scraper"
)

type runResponse struct {
	ID             string     `json:"id"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	EntriesChecked int        `json:"entriesChecked"`
	EntriesFailed  int        `json:"entriesFailed"`
	NewPostings    int        `json:"newPostings"`
	Notified       int        `json:"notified"`
}

func newRunResponse(r *model.RunRecord) runResponse {
	resp := runResponse{
		ID:             r.ID,
		StartedAt:      r.StartedAt,
		EntriesChecked: r.EntriesChecked,
		EntriesFailed:  r.EntriesFailed,
		NewPostings:    r.NewPostings,
		Notified:       r.Notified,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		resp.FinishedAt = &finished
	}
	return resp
}

type entryResponse struct {
	Name       string `json:"name"`
	Source     string `json:"source,omitempty"`
	Confidence string `json:"confidence,omitempty"`
	Fetched    int    `json:"fetched"`
	New        int    `json:"new"`
	Notified   int    `json:"notified"`
	Error      string `json:"error,omitempty"`
}

type summaryResponse struct {
	runResponse
	Matched             int             `json:"matched"`
	NotifyFailed        int             `json:"notifyFailed"`
	PersistenceFailures int             `json:"persistenceFailures"`
	Entries             []entryResponse `json:"entries"`
}

func newSummaryResponse(s *scraper.RunSummary) summaryResponse {
	rec := s.Record()
	resp := summaryResponse{
		runResponse:         newRunResponse(&rec),
		Matched:             s.Matched,
		NotifyFailed:        s.NotifyFailed,
		PersistenceFailures: len(s.PersistenceFailures),
		Entries:             make([]entryResponse, 0, len(s.Entries)),
	}
	for _, e := range s.Entries {
		er := entryResponse{
			Name:       e.Name,
			Source:     string(e.Resolution.Kind),
			Confidence: string(e.Resolution.Confidence),
			Fetched:    e.Fetched,
			New:        e.New,
			Notified:   e.Notified,
		}
		if e.Err != nil {
			er.Error = e.Err.Error()
		}
		resp.Entries = append(resp.Entries, er)
	}
	return resp
}
