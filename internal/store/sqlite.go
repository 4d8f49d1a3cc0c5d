package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jobmate/careerwatch-service/internal/model"
)

// seenPosting is the gorm row of the seen set.
type seenPosting struct {
	Organization string    `gorm:"primaryKey;not null"`
	ExternalID   string    `gorm:"primaryKey;not null"`
	Snapshot     string    `gorm:"not null"`
	FirstSeenAt  time.Time `gorm:"not null"`
}

func (seenPosting) TableName() string { return "seen_postings" }

// sweepRun is the gorm row of the runs table.
type sweepRun struct {
	ID             string    `gorm:"primaryKey"`
	StartedAt      time.Time `gorm:"not null;index"`
	FinishedAt     *time.Time
	EntriesChecked int
	EntriesFailed  int
	NewPostings    int
	Notified       int
}

func (sweepRun) TableName() string { return "sweep_runs" }

// SQLite is the gorm-backed Store for single-host deployments.
type SQLite struct {
	db *gorm.DB
}

// NewSQLite wraps db and migrates the schema.
func NewSQLite(db *gorm.DB) (*SQLite, error) {
	if err := db.AutoMigrate(&seenPosting{}, &sweepRun{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Seen implements diff.SeenStore.
func (s *SQLite) Seen(ctx context.Context, org string, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	var existing []string
	err := s.db.WithContext(ctx).
		Model(&seenPosting{}).
		Where("organization = ? AND external_id IN ?", org, ids).
		Pluck("external_id", &existing).Error
	if err != nil {
		return nil, fmt.Errorf("query seen_postings: %w", err)
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

// Record implements diff.SeenStore. An existing row is left untouched.
func (s *SQLite) Record(ctx context.Context, rec model.SeenRecord) (bool, error) {
	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return false, fmt.Errorf("marshal snapshot: %w", err)
	}

	row := seenPosting{
		Organization: rec.Organization,
		ExternalID:   rec.ExternalID,
		Snapshot:     string(snapshot),
		FirstSeenAt:  rec.FirstSeenAt.UTC(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("insert seen_postings: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// HasOrganization implements diff.SeenStore.
func (s *SQLite) HasOrganization(ctx context.Context, org string) (bool, error) {
	var rows []seenPosting
	res := s.db.WithContext(ctx).
		Select("organization").
		Where("organization = ?", org).
		Limit(1).
		Find(&rows)
	if res.Error != nil {
		return false, fmt.Errorf("query seen_postings: %w", res.Error)
	}
	return len(rows) > 0, nil
}

// StartRun inserts the opening row of a sweep.
func (s *SQLite) StartRun(ctx context.Context, run model.RunRecord) error {
	row := sweepRun{ID: run.ID, StartedAt: run.StartedAt.UTC()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert sweep_runs: %w", err)
	}
	return nil
}

// FinishRun stores the counters of a completed sweep.
func (s *SQLite) FinishRun(ctx context.Context, run model.RunRecord) error {
	finished := run.FinishedAt.UTC()
	err := s.db.WithContext(ctx).
		Model(&sweepRun{ID: run.ID}).
		Updates(map[string]any{
			"finished_at":     finished,
			"entries_checked": run.EntriesChecked,
			"entries_failed":  run.EntriesFailed,
			"new_postings":    run.NewPostings,
			"notified":        run.Notified,
		}).Error
	if err != nil {
		return fmt.Errorf("update sweep_runs: %w", err)
	}
	return nil
}

// LastRun returns the most recently started sweep.
func (s *SQLite) LastRun(ctx context.Context) (*model.RunRecord, error) {
	var rows []sweepRun
	res := s.db.WithContext(ctx).Order("started_at DESC").Limit(1).Find(&rows)
	if res.Error != nil {
		return nil, fmt.Errorf("query sweep_runs: %w", res.Error)
	}
	if len(rows) == 0 {
		return nil, ErrNoRuns
	}
	r := rows[0]
	run := &model.RunRecord{
		ID:             r.ID,
		StartedAt:      r.StartedAt,
		EntriesChecked: r.EntriesChecked,
		EntriesFailed:  r.EntriesFailed,
		NewPostings:    r.NewPostings,
		Notified:       r.Notified,
	}
	if r.FinishedAt != nil {
		run.FinishedAt = *r.FinishedAt
	}
	return run, nil
}

// Close closes the underlying connection.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
