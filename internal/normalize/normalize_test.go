package normalize_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/careerwatch-service/internal/ats"
	"jobmate/careerwatch-service/internal/model"
	"jobmate/careerwatch-service/internal/normalize"
)

var acme = normalize.Org{Name: "Acme", BaseURL: "https://acme.com/careers/", Source: model.KindGreenhouse}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	p, err := normalize.Normalize(ats.RawPosting{
		NativeID:   " 123 ",
		Title:      "  Software\n\tEngineer   Intern ",
		Department: " Platform  Team",
		Location:   "Toronto,   ON\n",
		URL:        "https://boards.greenhouse.io/acme/jobs/123",
	}, acme)

	require.NoError(t, err)
	assert.Equal(t, "Acme", p.Organization)
	assert.Equal(t, "123", p.ExternalID)
	assert.False(t, p.DerivedID)
	assert.Equal(t, "Software Engineer Intern", p.Title)
	assert.Equal(t, "Platform Team", p.Department)
	assert.Equal(t, "Toronto, ON", p.Location)
	assert.Equal(t, model.KindGreenhouse, p.Source)
	assert.True(t, p.FirstSeenAt.IsZero())
}

func TestNormalize_ResolvesRelativeURL(t *testing.T) {
	p, err := normalize.Normalize(ats.RawPosting{NativeID: "9", Title: "Dev", URL: "../jobs/9"}, acme)

	require.NoError(t, err)
	assert.Equal(t, "https://acme.com/jobs/9", p.URL)
}

func TestNormalize_MissingFields(t *testing.T) {
	cases := []struct {
		name string
		raw  ats.RawPosting
		org  normalize.Org
	}{
		{"blank title", ats.RawPosting{NativeID: "1", Title: "  \n", URL: "https://acme.com/1"}, acme},
		{"no url", ats.RawPosting{NativeID: "1", Title: "Dev"}, acme},
		{"relative url without base", ats.RawPosting{NativeID: "1", Title: "Dev", URL: "/jobs/1"}, normalize.Org{Name: "Acme"}},
		{"non-http url", ats.RawPosting{NativeID: "1", Title: "Dev", URL: "mailto:jobs@acme.com"}, acme},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalize.Normalize(tc.raw, tc.org)
			var merr *ats.MalformedPostingError
			assert.True(t, errors.As(err, &merr))
		})
	}
}

func TestNormalize_IdentityIgnoresTitleAndLocation(t *testing.T) {
	before, err := normalize.Normalize(ats.RawPosting{NativeID: "42", Title: "SWE Intern", Location: "Toronto", URL: "https://x.com/42"}, acme)
	require.NoError(t, err)
	after, err := normalize.Normalize(ats.RawPosting{NativeID: "42", Title: "Software Engineer Intern (Summer)", Location: "Remote", URL: "https://x.com/42"}, acme)
	require.NoError(t, err)

	assert.Equal(t, before.Identity(), after.Identity())
}

func TestNormalize_SameNativeIDDifferentOrganizations(t *testing.T) {
	a, err := normalize.Normalize(ats.RawPosting{NativeID: "1", Title: "Dev", URL: "https://a.com/1"}, normalize.Org{Name: "A"})
	require.NoError(t, err)
	b, err := normalize.Normalize(ats.RawPosting{NativeID: "1", Title: "Dev", URL: "https://b.com/1"}, normalize.Org{Name: "B"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Identity(), b.Identity())
}

func TestNormalize_DerivesIdentityFromURL(t *testing.T) {
	org := normalize.Org{Name: "Acme", BaseURL: "https://acme.com/careers", Source: model.KindGeneric}

	a, err := normalize.Normalize(ats.RawPosting{Title: "Dev", URL: "https://ACME.com/jobs/7/?utm_source=x#apply"}, org)
	require.NoError(t, err)
	b, err := normalize.Normalize(ats.RawPosting{Title: "Developer", URL: "/jobs/7"}, org)
	require.NoError(t, err)

	assert.True(t, a.DerivedID)
	assert.Equal(t, "url:https://acme.com/jobs/7", a.ExternalID)
	assert.Equal(t, a.Identity(), b.Identity())
}

func TestNormalize_PostedAt(t *testing.T) {
	p, err := normalize.Normalize(ats.RawPosting{NativeID: "1", Title: "Dev", URL: "https://a.com/1", PostedAt: "2026-10-01T12:00:00-04:00"}, acme)
	require.NoError(t, err)
	require.NotNil(t, p.PostedAt)
	assert.Equal(t, time.Date(2026, 10, 1, 16, 0, 0, 0, time.UTC), *p.PostedAt)

	p, err = normalize.Normalize(ats.RawPosting{NativeID: "1", Title: "Dev", URL: "https://a.com/1", PostedAt: "sometime"}, acme)
	require.NoError(t, err)
	assert.Nil(t, p.PostedAt)
}

func TestBatch_KeepsValidSiblings(t *testing.T) {
	result := &ats.FetchResult{
		BaseURL: "https://acme.com/careers",
		Malformed: []*ats.MalformedPostingError{
			{Kind: model.KindLever, Index: 3, Reason: "undecodable posting"},
		},
	}
	for i := 0; i < 10; i++ {
		raw := ats.RawPosting{NativeID: string(rune('a' + i)), Title: "Role", URL: "/jobs/" + string(rune('a'+i))}
		if i == 6 {
			raw.Title = ""
		}
		result.Postings = append(result.Postings, raw)
	}

	postings, skipped := normalize.Batch(result, normalize.Org{Name: "Acme", Source: model.KindLever})

	assert.Len(t, postings, 9)
	require.Len(t, skipped, 2)
	assert.Equal(t, 6, skipped[1].Index)
	assert.Equal(t, "https://acme.com/jobs/a", postings[0].URL)
}
