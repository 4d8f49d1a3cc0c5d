// Package store persists the seen set and the sweep history.
package store

import (
	"context"
	"errors"

	"jobmate/careerwatch-service/internal/diff"
	"jobmate/careerwatch-service/internal/model"
)

// ErrNoRuns is returned by LastRun before the first sweep.
var ErrNoRuns = errors.New("no sweep runs recorded")

// Store is the seen set plus the runs table.
type Store interface {
	diff.SeenStore
	StartRun(ctx context.Context, run model.RunRecord) error
	FinishRun(ctx context.Context, run model.RunRecord) error
	LastRun(ctx context.Context) (*model.RunRecord, error)
	Close() error
}
