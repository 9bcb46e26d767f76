package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryBucket struct {
	bucket    Bucket
	expiresAt time.Time
}

// MemoryStore is an in-memory bucket store for tests and single-process
// deployments.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]memoryBucket
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]memoryBucket),
		now:     time.Now,
	}
}

// WithNow replaces the clock. Tests use this together with Limiter.WithNow.
func (s *MemoryStore) WithNow(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// GetBucket implements Store.
func (s *MemoryStore) GetBucket(ctx context.Context, identity string) (*Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.buckets[identity]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.buckets, identity)
		return nil, nil
	}
	b := entry.bucket
	return &b, nil
}

// SetBucket implements Store.
func (s *MemoryStore) SetBucket(ctx context.Context, identity string, b *Bucket, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryBucket{bucket: *b}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.buckets[identity] = entry
	return nil
}

// DeleteBucket implements Store.
func (s *MemoryStore) DeleteBucket(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, identity)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[string]memoryBucket)
	return nil
}
