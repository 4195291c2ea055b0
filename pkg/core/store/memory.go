package store

import (
	"context"
	"fmt"
	"sync"

	"goldpipe/pkg/core/run"
)

// MemoryCache is an in-memory run.ResultCache with the same commit
// semantics as StageCache. Used by tests and database-less runs.
type MemoryCache struct {
	mu      sync.Mutex
	results map[string]*run.StageResult
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{results: map[string]*run.StageResult{}}
}

func (c *MemoryCache) Get(_ context.Context, fp string) (*run.StageResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sr, ok := c.results[fp]
	if !ok {
		return nil, nil
	}
	cp := *sr
	return &cp, nil
}

func (c *MemoryCache) Put(_ context.Context, sr *run.StageResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.results[sr.Fingerprint]; exists {
		return nil
	}
	cp := *sr
	c.results[sr.Fingerprint] = &cp
	return nil
}

func (c *MemoryCache) Replace(_ context.Context, sr *run.StageResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *sr
	c.results[sr.Fingerprint] = &cp
	return nil
}

// Len reports the number of cached results.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// MemoryRepo is an in-memory run.Repo.
type MemoryRepo struct {
	mu   sync.Mutex
	runs map[string]*run.Run
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{runs: map[string]*run.Run{}}
}

func (r *MemoryRepo) Create(_ context.Context, rec *run.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[rec.ID]; exists {
		return fmt.Errorf("run '%s' already exists", rec.ID)
	}
	r.runs[rec.ID] = rec
	return nil
}

func (r *MemoryRepo) Update(_ context.Context, rec *run.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[rec.ID]; !exists {
		return fmt.Errorf("run '%s' not found", rec.ID)
	}
	r.runs[rec.ID] = rec
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (*run.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run '%s' not found", id)
	}
	return rec, nil
}
