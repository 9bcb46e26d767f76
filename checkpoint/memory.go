package checkpoint

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory checkpoint store for tests and single-process
// deployments. Snapshots do not survive a restart.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[string]*Checkpoint)}
}

// Save stores a copy of the checkpoint.
func (s *MemoryStore) Save(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cloned := *cp
	cloned.State = append([]byte(nil), cp.State...)
	if cloned.UpdatedAt.IsZero() {
		cloned.UpdatedAt = time.Now()
	}
	s.checkpoints[cp.SessionID] = &cloned
	return nil
}

// Load retrieves a copy of the latest checkpoint for a session.
func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[sessionID]
	if !ok {
		return nil, ErrNotFound(sessionID)
	}
	cloned := *cp
	cloned.State = append([]byte(nil), cp.State...)
	return &cloned, nil
}

// Delete removes a session's checkpoint.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, sessionID)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints = make(map[string]*Checkpoint)
	return nil
}
