package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps failure counters in process memory. Entries outside
// the window are dropped lazily on access.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]*Lockout
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Lockout), now: time.Now}
}

func (s *InMemoryStore) RecordFailure(_ context.Context, key string, cfg Config) (*Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[key]
	if !ok || now.Sub(rec.FirstFailureAt) >= cfg.Window {
		rec = &Lockout{Key: key, FirstFailureAt: now}
		s.records[key] = rec
	}
	rec.FailureCount++
	rec.LastFailureAt = now
	if rec.FailureCount >= cfg.MaxFailures && rec.LockedUntil == nil {
		until := now.Add(cfg.LockFor)
		rec.LockedUntil = &until
	}
	clone := *rec
	return &clone, nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
