package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"moldash.org/internal/tenant"
)

// MemoryStore is the mutex-guarded Store for tests and DSN-less dev runs.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Create(_ context.Context, scope tenant.Scope, job *Job) error {
	if !scope.AppliesTo(job.OrganizationID) {
		return tenant.ErrCrossTenantViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) Find(_ context.Context, scope tenant.Scope, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok || !scope.AppliesTo(job.OrganizationID) {
		// Rows outside the bound organization are indistinguishable from
		// absent rows.
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, scope tenant.Scope) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Job
	for _, job := range s.jobs {
		if scope.AppliesTo(job.OrganizationID) {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, scope tenant.Scope, id, status string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || !scope.AppliesTo(job.OrganizationID) {
		return nil, ErrNotFound
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	cp := *job
	return &cp, nil
}
