package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"storegate/internal/sentinel"
	"storegate/internal/tenant/models"
	id "storegate/pkg/domain"
)

// Error Contract:
// All store methods follow this pattern:
// - Return sentinel.ErrNotFound when the requested entity does not exist
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
//
// In-memory stores back tests and single-node dev setups. They intentionally
// favor clarity over performance.
type InMemoryTenantStore struct {
	mu       sync.RWMutex
	tenants  map[id.TenantID]*models.Tenant
	bySlug   map[string]id.TenantID
	bindings map[string]*models.DomainBinding
}

func NewInMemoryTenantStore() *InMemoryTenantStore {
	return &InMemoryTenantStore{
		tenants:  make(map[id.TenantID]*models.Tenant),
		bySlug:   make(map[string]id.TenantID),
		bindings: make(map[string]*models.DomainBinding),
	}
}

func (s *InMemoryTenantStore) Create(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySlug[t.Slug]; ok {
		return sentinel.ErrConflict
	}
	s.tenants[t.ID] = t
	s.bySlug[t.Slug] = t.ID
	return nil
}

func (s *InMemoryTenantStore) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[tenantID]; ok {
		return t, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryTenantStore) FindBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tid, ok := s.bySlug[strings.ToLower(slug)]; ok {
		return s.tenants[tid], nil
	}
	return nil, sentinel.ErrNotFound
}

// Bind registers a custom domain for a tenant. An active binding on the same
// domain is a conflict; an unbound one is replaced.
func (s *InMemoryTenantStore) Bind(_ context.Context, b *models.DomainBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	domain := strings.ToLower(b.Domain)
	if existing, ok := s.bindings[domain]; ok && existing.Active() {
		return sentinel.ErrConflict
	}
	clone := *b
	clone.Domain = domain
	s.bindings[domain] = &clone
	return nil
}

func (s *InMemoryTenantStore) FindBindingByDomain(_ context.Context, domain string) (*models.DomainBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.bindings[strings.ToLower(domain)]; ok {
		return b, nil
	}
	return nil, sentinel.ErrNotFound
}

// UnboundAt is recorded, the row stays.
func (s *InMemoryTenantStore) Unbind(_ context.Context, domain string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[strings.ToLower(domain)]
	if !ok {
		return sentinel.ErrNotFound
	}
	b.Unbind(now)
	return nil
}
