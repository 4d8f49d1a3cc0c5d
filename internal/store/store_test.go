package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/careerwatch-service/internal/db"
	"jobmate/careerwatch-service/internal/model"
	"jobmate/careerwatch-service/internal/store"
)

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	org := "Acme-" + uuid.NewString()
	seenAt := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	has, err := s.HasOrganization(ctx, org)
	require.NoError(t, err)
	assert.False(t, has)

	p := model.Posting{Organization: org, ExternalID: "42", Title: "SWE Intern", URL: "https://acme.com/42", FirstSeenAt: seenAt}
	inserted, err := s.Record(ctx, model.NewSeenRecord(p))
	require.NoError(t, err)
	assert.True(t, inserted)

	p.Title = "Renamed"
	inserted, err = s.Record(ctx, model.NewSeenRecord(p))
	require.NoError(t, err)
	assert.False(t, inserted, "second write of an identity must not insert")

	has, err = s.HasOrganization(ctx, org)
	require.NoError(t, err)
	assert.True(t, has)

	found, err := s.Seen(ctx, org, []string{"42", "43"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"42": true}, found)

	found, err = s.Seen(ctx, "Other-"+org, []string{"42"})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = s.Seen(ctx, org, nil)
	require.NoError(t, err)
	assert.Empty(t, found)

	run := model.RunRecord{ID: uuid.NewString(), StartedAt: time.Now().UTC().Add(time.Hour).Truncate(time.Second)}
	require.NoError(t, s.StartRun(ctx, run))
	run.FinishedAt = run.StartedAt.Add(time.Minute)
	run.EntriesChecked, run.EntriesFailed, run.NewPostings, run.Notified = 5, 1, 3, 2
	require.NoError(t, s.FinishRun(ctx, run))

	last, err := s.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, last.ID)
	assert.Equal(t, 5, last.EntriesChecked)
	assert.Equal(t, 1, last.EntriesFailed)
	assert.Equal(t, 3, last.NewPostings)
	assert.Equal(t, 2, last.Notified)
	assert.True(t, run.FinishedAt.Equal(last.FinishedAt))
}

func TestMemory(t *testing.T) {
	exerciseStore(t, store.NewMemory())
}

func TestMemory_LastRunEmpty(t *testing.T) {
	_, err := store.NewMemory().LastRun(context.Background())
	assert.ErrorIs(t, err, store.ErrNoRuns)
}

func TestSQLite(t *testing.T) {
	gdb, err := db.NewSQLite(":memory:")
	require.NoError(t, err)
	s, err := store.NewSQLite(gdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.LastRun(context.Background())
	assert.ErrorIs(t, err, store.ErrNoRuns)

	exerciseStore(t, s)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/seen.db"

	gdb, err := db.NewSQLite(path)
	require.NoError(t, err)
	s, err := store.NewSQLite(gdb)
	require.NoError(t, err)
	_, err = s.Record(ctx, model.SeenRecord{Organization: "Acme", ExternalID: "1", FirstSeenAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	gdb, err = db.NewSQLite(path)
	require.NoError(t, err)
	s, err = store.NewSQLite(gdb)
	require.NoError(t, err)
	defer s.Close()

	found, err := s.Seen(ctx, "Acme", []string{"1"})
	require.NoError(t, err)
	assert.True(t, found["1"])
}

// TestPostgres runs against a real database when TEST_DATABASE_URL is set.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := db.NewPostgresPool(ctx, dsn, 4)
	require.NoError(t, err)
	s := store.NewPostgres(pool)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	exerciseStore(t, s)
}
