package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"storegate/internal/captoken/models"
	"storegate/internal/sentinel"
	id "storegate/pkg/domain"
)

// Error Contract:
// - sentinel.ErrNotFound for missing rows
// - sentinel.ErrRevoked / ErrExpired / ErrExhausted from ConsumeUse when the
//   conditional increment fails, so callers report the precise terminal state
// - wrapped errors for infrastructure failures
//
// InMemoryTokenStore backs tests and single-node dev setups.
type InMemoryTokenStore struct {
	mu     sync.Mutex
	byHash map[string]*models.Record
	byID   map[id.TokenID]*models.Record
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{
		byHash: make(map[string]*models.Record),
		byID:   make(map[id.TokenID]*models.Record),
	}
}

func (s *InMemoryTokenStore) Create(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[rec.TokenHash]; ok {
		return sentinel.ErrConflict
	}
	clone := cloneRecord(rec)
	s.byHash[rec.TokenHash] = clone
	s.byID[rec.ID] = clone
	return nil
}

func (s *InMemoryTokenStore) FindByHash(_ context.Context, hash string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.byHash[hash]; ok {
		return cloneRecord(rec), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryTokenStore) FindByID(_ context.Context, tokenID id.TokenID) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.byID[tokenID]; ok {
		return cloneRecord(rec), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryTokenStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Record
	for _, rec := range s.byID {
		if rec.TenantID == tenantID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

// ConsumeUse is the increment-and-check: the validity conditions and the
// increment happen under one lock so two concurrent uses of the last
// remaining slot cannot both succeed.
func (s *InMemoryTokenStore) ConsumeUse(_ context.Context, tokenID id.TokenID, now time.Time) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[tokenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if rec.RevokedAt != nil {
		return nil, sentinel.ErrRevoked
	}
	if !now.Before(rec.ExpiresAt) {
		return nil, sentinel.ErrExpired
	}
	if rec.Exhausted() {
		return nil, sentinel.ErrExhausted
	}
	rec.UseCount++
	return cloneRecord(rec), nil
}

// Revoke sets revoked_at. Revoking an already-revoked token is a no-op
// success; the original revocation time is kept.
func (s *InMemoryTokenStore) Revoke(_ context.Context, tokenID id.TokenID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[tokenID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.RevokedAt == nil {
		rec.RevokedAt = &at
	}
	return nil
}

func cloneRecord(rec *models.Record) *models.Record {
	clone := *rec
	clone.Scopes = append([]models.Scope(nil), rec.Scopes...)
	if rec.MaxUses != nil {
		v := *rec.MaxUses
		clone.MaxUses = &v
	}
	if rec.RevokedAt != nil {
		v := *rec.RevokedAt
		clone.RevokedAt = &v
	}
	if rec.LinkedResourceID != nil {
		v := *rec.LinkedResourceID
		clone.LinkedResourceID = &v
	}
	return &clone
}

// InMemorySubjectStore holds the external clients tokens are issued to.
type InMemorySubjectStore struct {
	mu       sync.RWMutex
	subjects map[id.SubjectID]*models.Subject
}

func NewInMemorySubjectStore() *InMemorySubjectStore {
	return &InMemorySubjectStore{subjects: make(map[id.SubjectID]*models.Subject)}
}

func (s *InMemorySubjectStore) Put(subject *models.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subject.ID] = subject
}

func (s *InMemorySubjectStore) FindByID(_ context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sub, ok := s.subjects[subjectID]; ok {
		return sub, nil
	}
	return nil, sentinel.ErrNotFound
}
