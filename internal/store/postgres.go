package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/careerwatch-service/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS seen_postings (
    organization  TEXT        NOT NULL,
    external_id   TEXT        NOT NULL,
    snapshot      JSONB       NOT NULL,
    first_seen_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (organization, external_id)
);

CREATE TABLE IF NOT EXISTS sweep_runs (
    id              UUID        PRIMARY KEY,
    started_at      TIMESTAMPTZ NOT NULL,
    finished_at     TIMESTAMPTZ,
    entries_checked INT         NOT NULL DEFAULT 0,
    entries_failed  INT         NOT NULL DEFAULT 0,
    new_postings    INT         NOT NULL DEFAULT 0,
    notified        INT         NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS sweep_runs_started_at_idx ON sweep_runs (started_at DESC);
`

// Postgres is the pgx-backed Store. The composite primary key is the index
// every existence check and insert goes through.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps pool. Call Migrate before first use.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the tables when missing.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Seen implements diff.SeenStore.
func (s *Postgres) Seen(ctx context.Context, org string, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT external_id FROM seen_postings
		 WHERE organization = $1 AND external_id = ANY($2)`,
		org, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query seen_postings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}

// Record implements diff.SeenStore. An existing row is left untouched.
func (s *Postgres) Record(ctx context.Context, rec model.SeenRecord) (bool, error) {
	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return false, fmt.Errorf("marshal snapshot: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO seen_postings (organization, external_id, snapshot, first_seen_at)
		 VALUES ($1, $2, $3::jsonb, $4)
		 ON CONFLICT (organization, external_id) DO NOTHING`,
		rec.Organization, rec.ExternalID, string(snapshot), rec.FirstSeenAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert seen_postings: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// HasOrganization implements diff.SeenStore.
func (s *Postgres) HasOrganization(ctx context.Context, org string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM seen_postings WHERE organization = $1)`, org,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query seen_postings: %w", err)
	}
	return exists, nil
}

// StartRun inserts the opening row of a sweep.
func (s *Postgres) StartRun(ctx context.Context, run model.RunRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sweep_runs (id, started_at) VALUES ($1::uuid, $2)`,
		run.ID, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sweep_runs: %w", err)
	}
	return nil
}

// FinishRun stores the counters of a completed sweep.
func (s *Postgres) FinishRun(ctx context.Context, run model.RunRecord) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sweep_runs
		 SET finished_at = $2, entries_checked = $3, entries_failed = $4,
		     new_postings = $5, notified = $6
		 WHERE id = $1::uuid`,
		run.ID, run.FinishedAt, run.EntriesChecked, run.EntriesFailed, run.NewPostings, run.Notified,
	)
	if err != nil {
		return fmt.Errorf("update sweep_runs: %w", err)
	}
	return nil
}

// LastRun returns the most recently started sweep.
func (s *Postgres) LastRun(ctx context.Context) (*model.RunRecord, error) {
	var (
		run      model.RunRecord
		finished *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, started_at, finished_at, entries_checked, entries_failed, new_postings, notified
		 FROM sweep_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&run.ID, &run.StartedAt, &finished, &run.EntriesChecked, &run.EntriesFailed, &run.NewPostings, &run.Notified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("query sweep_runs: %w", err)
	}
	if finished != nil {
		run.FinishedAt = *finished
	}
	return &run, nil
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
