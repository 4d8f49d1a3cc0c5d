package ats_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/careerwatch-service/internal/ats"
	"jobmate/careerwatch-service/internal/model"
)

func TestDetector_DeclaredEntrySkipsNetwork(t *testing.T) {
	d := ats.NewDetector(newTestClient(failingTransport{t}), nil)

	res, err := d.Resolve(context.Background(), model.WatchEntry{
		Name:       "Acme",
		CareersURL: "https://acme.com/careers",
		Kind:       model.KindLever,
		BoardID:    "acme",
	})

	require.NoError(t, err)
	assert.Equal(t, model.KindLever, res.Kind)
	assert.Equal(t, "acme", res.BoardID)
	assert.Equal(t, model.ConfidenceExplicit, res.Confidence)
}

func TestDetector_SeedAlreadyOnATS(t *testing.T) {
	d := ats.NewDetector(newTestClient(failingTransport{t}), nil)

	res, err := d.Resolve(context.Background(), model.WatchEntry{
		Name:       "Acme",
		CareersURL: "https://boards.greenhouse.io/acme",
	})

	require.NoError(t, err)
	assert.Equal(t, model.KindGreenhouse, res.Kind)
	assert.Equal(t, "acme", res.BoardID)
	assert.Equal(t, model.ConfidenceRedirect, res.Confidence)
}

func TestDetector_RedirectToATSHost(t *testing.T) {
	rt := newFakeTransport(map[string]fakeResponse{
		"acme.com/careers":   {status: http.StatusFound, location: "https://jobs.lever.co/acme"},
		"jobs.lever.co/acme": {status: http.StatusOK, body: "<html></html>"},
	})
	d := ats.NewDetector(newTestClient(rt), nil)

	res, err := d.Resolve(context.Background(), model.WatchEntry{Name: "Acme", CareersURL: "https://acme.com/careers"})

	require.NoError(t, err)
	assert.Equal(t, model.KindLever, res.Kind)
	assert.Equal(t, "acme", res.BoardID)
	assert.Equal(t, model.ConfidenceRedirect, res.Confidence)
	assert.Equal(t, "https://jobs.lever.co/acme", res.FinalURL)
	assert.Equal(t, "https://acme.com/careers", res.SeedURL)
}

func TestDetector_BodySignature(t *testing.T) {
	rt := newFakeTransport(map[string]fakeResponse{
		"acme.com/careers": {
			status: http.StatusOK,
			body:   `<div id="grnhse_app"></div><script src="https://boards.greenhouse.io/embed/job_board/js?for=acmeco"></script>`,
		},
	})
	d := ats.NewDetector(newTestClient(rt), nil)

	res, err := d.Resolve(context.Background(), model.WatchEntry{Name: "Acme", CareersURL: "https://acme.com/careers"})

	require.NoError(t, err)
	assert.Equal(t, model.KindGreenhouse, res.Kind)
	assert.Equal(t, "acmeco", res.BoardID)
	assert.Equal(t, model.ConfidenceSignature, res.Confidence)
}

func TestDetector_FallbackIsNotAnError(t *testing.T) {
	rt := newFakeTransport(map[string]fakeResponse{
		"acme.com/careers": {status: http.StatusOK, body: `<a href="/careers/backend-intern">Backend Intern</a>`},
	})
	d := ats.NewDetector(newTestClient(rt), nil)

	res, err := d.Resolve(context.Background(), model.WatchEntry{Name: "Acme", CareersURL: "https://acme.com/careers"})

	require.NoError(t, err)
	assert.Equal(t, model.KindGeneric, res.Kind)
	assert.Empty(t, res.BoardID)
	assert.Equal(t, model.ConfidenceFallback, res.Confidence)
}

func TestDetector_UnreachableSeed(t *testing.T) {
	rt := newFakeTransport(map[string]fakeResponse{
		"acme.com/careers": {status: http.StatusForbidden},
	})
	d := ats.NewDetector(newTestClient(rt), nil)

	_, err := d.Resolve(context.Background(), model.WatchEntry{Name: "Acme", CareersURL: "https://acme.com/careers"})

	var resErr *ats.ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, http.StatusForbidden, resErr.StatusCode)
	assert.Equal(t, "https://acme.com/careers", resErr.URL)
}

func TestDetector_RetriesServerErrors(t *testing.T) {
	rt := newFakeTransport(map[string]fakeResponse{
		"acme.com/careers": {status: http.StatusServiceUnavailable},
	})
	d := ats.NewDetector(newTestClient(rt), nil)

	_, err := d.Resolve(context.Background(), model.WatchEntry{Name: "Acme", CareersURL: "https://acme.com/careers"})

	var resErr *ats.ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, http.StatusServiceUnavailable, resErr.StatusCode)
	assert.Equal(t, 3, rt.total())
}

func TestDetector_Deterministic(t *testing.T) {
	body := `<a href="https://jobs.ashbyhq.com/acme">Ashby</a><script>var boardToken = "acme";</script>`
	rt := newFakeTransport(map[string]fakeResponse{
		"acme.com/careers": {status: http.StatusOK, body: body},
	})
	d := ats.NewDetector(newTestClient(rt), nil)
	entry := model.WatchEntry{Name: "Acme", CareersURL: "https://acme.com/careers"}

	first, err := d.Resolve(context.Background(), entry)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := d.Resolve(context.Background(), entry)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, model.KindAshby, first.Kind)
}

func TestRunCache_SharesOneDetectionPerSeed(t *testing.T) {
	rt := newFakeTransport(map[string]fakeResponse{
		"acme.com/careers": {status: http.StatusOK, body: `<iframe src="https://jobs.lever.co/acme"></iframe>`},
	})
	cache := ats.NewRunCache(ats.NewDetector(newTestClient(rt), nil))
	entry := model.WatchEntry{Name: "Acme", CareersURL: "https://acme.com/careers"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := cache.Resolve(context.Background(), entry)
			assert.NoError(t, err)
			assert.Equal(t, model.KindLever, res.Kind)
		}()
	}
	wg.Wait()

	_, err := cache.Resolve(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, 1, rt.total())
}
