package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/careerwatch-service/internal/ats"
	"jobmate/careerwatch-service/internal/model"
	"jobmate/careerwatch-service/internal/scraper"
)

const careersPage = `<html><head><script type="application/ld+json">
[{"@type": "JobPosting", "title": "Software Engineer Intern", "url": "/jobs/1",
  "jobLocation": {"address": {"addressLocality": "Toronto", "addressCountry": "Canada"}}},
 {"@type": "JobPosting", "title": "Staff Engineer", "url": "/jobs/2"}]
</script></head><body></body></html>`

func careersServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(careersPage))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeWatchlist(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand_DryRun(t *testing.T) {
	srv := careersServer(t)
	path := writeWatchlist(t, `
companies:
  - name: Acme
    careers_url: `+srv.URL+`/careers
    ats_type: generic
filters:
  locations: [Toronto]
  level_keywords: [intern]
`)

	out, err := execute(t, "run", "--dry-run", "--watchlist", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "generic")
	assert.Contains(t, out, "1 CHECKED, 0 FAILED")
}

func TestRunCommand_BadWatchlistFails(t *testing.T) {
	path := writeWatchlist(t, "companies:\n  - name: NoURL\n")

	_, err := execute(t, "run", "--dry-run", "--watchlist", path)

	assert.ErrorContains(t, err, "careers_url")
}

func TestRunCommand_MissingWatchlistFails(t *testing.T) {
	_, err := execute(t, "run", "--dry-run", "--watchlist", filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}

func TestDetectCommand_NoFetch(t *testing.T) {
	path := writeWatchlist(t, `
companies:
  - name: Acme
    careers_url: https://jobs.lever.co/acme
  - name: Globex
    careers_url: https://globex.example.com/careers
    ats_type: greenhouse
    board_id: globex
`)

	out, err := execute(t, "detect", "--no-fetch", "--watchlist", path)

	require.NoError(t, err)
	assert.Contains(t, out, "lever")
	assert.Contains(t, out, "redirect")
	assert.Contains(t, out, "explicit")
	assert.Contains(t, out, "2 entries")
	assert.NotContains(t, out, "POSTINGS")
}

type failingResolver struct{}

func (failingResolver) Resolve(_ context.Context, e model.WatchEntry) (model.Resolution, error) {
	return model.Resolution{}, &ats.ResolutionError{URL: e.CareersURL, StatusCode: http.StatusForbidden, Cause: errors.New("forbidden")}
}

func TestDetectAll(t *testing.T) {
	srv := careersServer(t)
	client := ats.NewClient(ats.ClientConfig{HTTPClient: srv.Client()}, nil)
	entries := []model.WatchEntry{
		{Name: "Acme", CareersURL: srv.URL + "/careers"},
		{Name: "Initech", CareersURL: srv.URL + "/other", Kind: model.KindGeneric},
	}

	rows := detectAll(context.Background(), entries, ats.NewDetector(client, nil), ats.NewDefaultRegistry(client), 2, true)

	require.Len(t, rows, 2)
	assert.Equal(t, model.KindGeneric, rows[0].Resolution.Kind)
	assert.Equal(t, model.ConfidenceFallback, rows[0].Resolution.Confidence)
	assert.Equal(t, 2, rows[0].Postings)
	assert.Equal(t, model.ConfidenceExplicit, rows[1].Resolution.Confidence)

	failed := detectAll(context.Background(), entries[:1], failingResolver{}, ats.NewDefaultRegistry(client), 1, true)
	require.Len(t, failed, 1)
	assert.Error(t, failed[0].Err)
	assert.Zero(t, failed[0].Postings)
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, &scraper.RunSummary{
		EntriesChecked: 2,
		EntriesFailed:  1,
		NewPostings:    5,
		Entries: []scraper.EntryResult{
			{Name: "Acme", Resolution: model.Resolution{Kind: model.KindAshby}, Fetched: 5, New: 5},
			{Name: "Gone", Err: errors.New("status 404")},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "ashby")
	assert.Contains(t, out, "status 404")
	assert.Contains(t, out, "2 CHECKED, 1 FAILED")
}
