package ats_test

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"jobmate/careerwatch-service/internal/ats"
)

// fakeResponse is a canned upstream answer.
type fakeResponse struct {
	status   int
	location string
	body     string
}

// fakeTransport serves canned responses keyed by "host/path" and counts requests.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     map[string]int
}

func newFakeTransport(responses map[string]fakeResponse) *fakeTransport {
	return &fakeTransport{responses: responses, calls: make(map[string]int)}
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := req.URL.Host + req.URL.Path
	f.mu.Lock()
	f.calls[key]++
	r, ok := f.responses[key]
	f.mu.Unlock()
	if !ok {
		r = fakeResponse{status: http.StatusNotFound}
	}

	header := make(http.Header)
	if r.location != "" {
		header.Set("Location", r.location)
	}
	return &http.Response{
		StatusCode: r.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Request:    req,
	}, nil
}

func (f *fakeTransport) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// failingTransport fails the test on any request.
type failingTransport struct{ t *testing.T }

func (f failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.t.Errorf("unexpected request to %s", req.URL)
	return nil, io.ErrUnexpectedEOF
}

func newTestClient(rt http.RoundTripper) *ats.Client {
	return ats.NewClient(ats.ClientConfig{
		Timeout:        2 * time.Second,
		HTTPClient:     &http.Client{Transport: rt},
		InitialBackoff: time.Millisecond,
	}, nil)
}

func newHTTPClient() *ats.Client {
	return ats.NewClient(ats.ClientConfig{
		Timeout:        2 * time.Second,
		InitialBackoff: time.Millisecond,
	}, nil)
}
