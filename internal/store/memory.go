package store

import (
	"context"
	"sync"

	"jobmate/careerwatch-service/internal/model"
)

// Memory is a process-local Store. Nothing survives a restart, so it only
// backs dry runs and tests.
type Memory struct {
	mu   sync.RWMutex
	seen map[model.Identity]model.SeenRecord
	orgs map[string]struct{}
	runs []model.RunRecord
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		seen: make(map[model.Identity]model.SeenRecord),
		orgs: make(map[string]struct{}),
	}
}

// Seen implements diff.SeenStore.
func (m *Memory) Seen(_ context.Context, org string, ids []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.seen[model.Identity{Organization: org, ExternalID: id}]; ok {
			found[id] = true
		}
	}
	return found, nil
}

// Record implements diff.SeenStore.
func (m *Memory) Record(_ context.Context, rec model.SeenRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.Identity{Organization: rec.Organization, ExternalID: rec.ExternalID}
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = rec
	m.orgs[rec.Organization] = struct{}{}
	return true, nil
}

// HasOrganization implements diff.SeenStore.
func (m *Memory) HasOrganization(_ context.Context, org string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.orgs[org]
	return ok, nil
}

// StartRun records the start of a sweep.
func (m *Memory) StartRun(_ context.Context, run model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// FinishRun replaces the matching run with its final counters.
func (m *Memory) FinishRun(_ context.Context, run model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

// LastRun returns the most recently started sweep.
func (m *Memory) LastRun(_ context.Context) (*model.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runs) == 0 {
		return nil, ErrNoRuns
	}
	last := m.runs[len(m.runs)-1]
	return &last, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
