package diff_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/careerwatch-service/internal/diff"
	"jobmate/careerwatch-service/internal/model"
)

var errDiskFull = errors.New("disk full")

// fakeStore is an in-memory SeenStore with failure injection.
type fakeStore struct {
	mu      sync.Mutex
	records map[model.Identity]model.SeenRecord
	// failures maps an external id to how many writes fail before one succeeds;
	// a negative count fails forever.
	failures map[string]int
	// lostAcks maps an external id to how many writes land but report an error.
	lostAcks map[string]int
	seenErr  error
	writes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[model.Identity]model.SeenRecord), failures: make(map[string]int), lostAcks: make(map[string]int)}
}

func (f *fakeStore) Seen(_ context.Context, org string, ids []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seenErr != nil {
		return nil, f.seenErr
	}
	out := make(map[string]bool)
	for _, id := range ids {
		if _, ok := f.records[model.Identity{Organization: org, ExternalID: id}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeStore) Record(_ context.Context, rec model.SeenRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if n, ok := f.failures[rec.ExternalID]; ok && n != 0 {
		if n > 0 {
			f.failures[rec.ExternalID] = n - 1
		}
		return false, errDiskFull
	}
	key := model.Identity{Organization: rec.Organization, ExternalID: rec.ExternalID}
	if _, ok := f.records[key]; ok {
		return false, nil
	}
	f.records[key] = rec
	if n := f.lostAcks[rec.ExternalID]; n > 0 {
		f.lostAcks[rec.ExternalID] = n - 1
		return false, errDiskFull
	}
	return true, nil
}

func (f *fakeStore) HasOrganization(_ context.Context, org string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.records {
		if id.Organization == org {
			return true, nil
		}
	}
	return false, nil
}

func posting(org, id, title string) model.Posting {
	return model.Posting{
		Organization: org,
		ExternalID:   id,
		Title:        title,
		Location:     "Toronto",
		URL:          "https://example.com/" + id,
	}
}

func batch(org string, ids ...string) []model.Posting {
	out := make([]model.Posting, 0, len(ids))
	for _, id := range ids {
		out = append(out, posting(org, id, "Engineer "+id))
	}
	return out
}

func ids(ps []model.Posting) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ExternalID)
	}
	return out
}

func newEngine(store diff.SeenStore) *diff.Engine {
	clock := func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return diff.NewEngine(store, nil, diff.WithClock(clock), diff.WithRetryBackoff(time.Millisecond))
}

func TestEngine_FirstRunClassifiesEverythingNewOnce(t *testing.T) {
	ctx := context.Background()
	e := newEngine(newFakeStore())

	part, err := e.Partition(ctx, "Acme", batch("Acme", "1", "2", "3"))
	require.NoError(t, err)
	assert.True(t, part.FirstRun)
	assert.Equal(t, []string{"1", "2", "3"}, ids(part.New))
	assert.Empty(t, part.Seen)
	for _, p := range part.New {
		assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), p.FirstSeenAt)
	}

	res, err := e.Commit(ctx, part.New)
	require.NoError(t, err)
	assert.Len(t, res.Committed, 3)

	part, err = e.Partition(ctx, "Acme", batch("Acme", "1", "2", "3"))
	require.NoError(t, err)
	assert.False(t, part.FirstRun)
	assert.Empty(t, part.New)
	assert.Len(t, part.Seen, 3)
}

func TestEngine_Idempotent(t *testing.T) {
	ctx := context.Background()
	e := newEngine(newFakeStore())
	candidates := batch("Acme", "a", "b")

	for run := 0; run < 2; run++ {
		part, err := e.Partition(ctx, "Acme", candidates)
		require.NoError(t, err)
		res, err := e.Commit(ctx, part.New)
		require.NoError(t, err)
		if run == 0 {
			assert.Len(t, res.Committed, 2)
		} else {
			assert.Empty(t, part.New)
			assert.Empty(t, res.Committed)
		}
	}
}

func TestEngine_EditedPostingStaysSeen(t *testing.T) {
	ctx := context.Background()
	e := newEngine(newFakeStore())

	part, err := e.Partition(ctx, "Acme", []model.Posting{posting("Acme", "42", "SWE Intern")})
	require.NoError(t, err)
	_, err = e.Commit(ctx, part.New)
	require.NoError(t, err)

	edited := posting("Acme", "42", "Software Engineer Intern (Summer 2027)")
	edited.Location = "Remote - Canada"
	part, err = e.Partition(ctx, "Acme", []model.Posting{edited})
	require.NoError(t, err)
	assert.Empty(t, part.New)
	assert.Len(t, part.Seen, 1)
}

func TestEngine_IdentityIsScopedByOrganization(t *testing.T) {
	ctx := context.Background()
	e := newEngine(newFakeStore())

	part, err := e.Partition(ctx, "Acme", batch("Acme", "1"))
	require.NoError(t, err)
	_, err = e.Commit(ctx, part.New)
	require.NoError(t, err)

	part, err = e.Partition(ctx, "Globex", batch("Globex", "1"))
	require.NoError(t, err)
	assert.True(t, part.FirstRun)
	assert.Len(t, part.New, 1)
}

func TestEngine_CollapsesDuplicatesInBatch(t *testing.T) {
	e := newEngine(newFakeStore())
	candidates := append(batch("Acme", "1", "2"), posting("Acme", "1", "Renamed"))

	part, err := e.Partition(context.Background(), "Acme", candidates)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(part.New))
	assert.Equal(t, "Engineer 1", part.New[0].Title)
	assert.Equal(t, 1, part.Collapsed)
}

func TestEngine_PartialCommitFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failures["3"] = -1
	e := newEngine(store)

	part, err := e.Partition(ctx, "Acme", batch("Acme", "1", "2", "3", "4"))
	require.NoError(t, err)
	res, err := e.Commit(ctx, part.New)

	var perr *diff.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "3", perr.ExternalID)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, []string{"1", "2", "4"}, ids(res.Committed))
	require.Len(t, res.Failed, 1)

	// The failed posting comes back as new; the committed ones do not.
	delete(store.failures, "3")
	part, err = e.Partition(ctx, "Acme", batch("Acme", "1", "2", "3", "4"))
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(part.New))

	res, err = e.Commit(ctx, part.New)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(res.Committed))
}

func TestEngine_RetriesTransientWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failures["1"] = 2
	e := newEngine(store)

	part, err := e.Partition(ctx, "Acme", batch("Acme", "1"))
	require.NoError(t, err)
	res, err := e.Commit(ctx, part.New)

	require.NoError(t, err)
	assert.Len(t, res.Committed, 1)
	assert.Equal(t, 3, store.writes)
}

func TestEngine_LostAcknowledgementStillCommits(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.lostAcks["1"] = 1
	e := newEngine(store)

	part, err := e.Partition(ctx, "Acme", batch("Acme", "1", "2"))
	require.NoError(t, err)
	res, err := e.Commit(ctx, part.New)

	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(res.Committed))
	assert.Empty(t, res.Duplicates)

	// Recorded exactly once, so the next cycle sees it.
	next, err := e.Partition(ctx, "Acme", batch("Acme", "1"))
	require.NoError(t, err)
	assert.Empty(t, next.New)
}

func TestEngine_ConcurrentWriterWinsIsDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	e := newEngine(store)

	part, err := e.Partition(ctx, "Acme", batch("Acme", "1", "2"))
	require.NoError(t, err)

	// Another sweep records "2" between our partition and commit.
	other := newEngine(store)
	_, err = other.Commit(ctx, batch("Acme", "2"))
	require.NoError(t, err)

	res, err := e.Commit(ctx, part.New)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(res.Committed))
	assert.Equal(t, []string{"2"}, ids(res.Duplicates))
}

func TestEngine_SeenReadFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	e := newEngine(store)
	_, err := e.Commit(ctx, batch("Acme", "1"))
	require.NoError(t, err)

	store.seenErr = errDiskFull
	_, err = e.Partition(ctx, "Acme", batch("Acme", "1", "2"))

	var perr *diff.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "seen", perr.Op)
}

func TestEngine_ConcurrentCommitsSameOrganization(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	e := newEngine(store)
	candidates := batch("Acme", "1", "2", "3", "4", "5")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Commit(ctx, candidates)
			assert.NoError(t, err)
			mu.Lock()
			committed += len(res.Committed)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(candidates), committed)
}
