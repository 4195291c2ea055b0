package content

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store with in-memory storage. Used for tests and
// for running the engine without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	pieces map[string]*Content
}

// NewMemoryStore creates an empty in-memory content store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pieces: make(map[string]*Content)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.pieces[id]
	if !ok || c.Deleted {
		return nil, &NotFoundError{ID: id}
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, kind Kind) ([]*Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Content
	for _, c := range s.pieces {
		if c.Deleted {
			continue
		}
		if kind == "" || c.Kind == kind {
			cp := *c
			results = append(results, &cp)
		}
	}
	return results, nil
}

// Put inserts or replaces a piece. The cycle-free invariant is enforced
// here: a mapping that transitively reaches back to the piece is rejected.
func (s *MemoryStore) Put(ctx context.Context, c *Content) error {
	if c.ID == "" {
		return fmt.Errorf("content ID cannot be empty")
	}
	if !ValidKind(c.Kind) {
		return fmt.Errorf("unknown content kind '%s' for '%s'", c.Kind, c.ID)
	}
	if err := checkAcyclic(ctx, s, c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cp := *c
	if prev, ok := s.pieces[c.ID]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.pieces[c.ID] = &cp
	return nil
}

// Delete soft-deletes a piece. Snapshots embedded in completed runs are
// unaffected; only future lookups miss.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.pieces[id]
	if !ok || c.Deleted {
		return &NotFoundError{ID: id}
	}
	c.Deleted = true
	c.UpdatedAt = time.Now()
	return nil
}
