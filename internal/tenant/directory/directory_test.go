package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"storegate/internal/hostname"
	"storegate/internal/tenant/models"
	"storegate/internal/tenant/store"
	id "storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
)

func seedTenant(t *testing.T, s *store.InMemoryTenantStore, slug string) *models.Tenant {
	t.Helper()
	tn, err := models.NewTenant(id.TenantID(uuid.New()), slug, "Tenant "+slug, time.Now())
	if err != nil {
		t.Fatalf("unexpected error building tenant: %v", err)
	}
	if err := s.Create(context.Background(), tn); err != nil {
		t.Fatalf("unexpected error creating tenant: %v", err)
	}
	return tn
}

func seedBinding(t *testing.T, s *store.InMemoryTenantStore, tn *models.Tenant, domain string, state models.VerificationState) {
	t.Helper()
	now := time.Now()
	err := s.Bind(context.Background(), &models.DomainBinding{
		TenantID: tn.ID, Slug: tn.Slug, Domain: domain,
		State: state, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error binding %s: %v", domain, err)
	}
}

func TestResolveSlug(t *testing.T) {
	s := store.NewInMemoryTenantStore()
	tn := seedTenant(t, s, "acme")
	d := New(s)

	got, err := d.Resolve(context.Background(), hostname.Classification{
		Kind: hostname.KindPlatformSubdomain, Slug: "acme",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != tn.ID {
		t.Fatalf("resolved wrong tenant")
	}
}

func TestResolveSlugMiss(t *testing.T) {
	d := New(store.NewInMemoryTenantStore())

	_, err := d.Resolve(context.Background(), hostname.Classification{
		Kind: hostname.KindPlatformSubdomain, Slug: "ghost",
	})
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveCustomDomain(t *testing.T) {
	s := store.NewInMemoryTenantStore()
	tn := seedTenant(t, s, "acme")
	seedBinding(t, s, tn, "shop.example.com", models.VerificationTLSActive)
	d := New(s)

	got, err := d.Resolve(context.Background(), hostname.Classification{
		Kind: hostname.KindCustomDomain, Domain: "shop.example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != tn.ID {
		t.Fatalf("resolved wrong tenant")
	}
}

func TestResolveFailedBindingIsMiss(t *testing.T) {
	s := store.NewInMemoryTenantStore()
	tn := seedTenant(t, s, "acme")
	seedBinding(t, s, tn, "shop.example.com", models.VerificationFailed)
	d := New(s)

	_, err := d.Resolve(context.Background(), hostname.Classification{
		Kind: hostname.KindCustomDomain, Domain: "shop.example.com",
	})
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("failed binding must resolve to not found, got %v", err)
	}
}

func TestResolveUnboundDomainIsMiss(t *testing.T) {
	s := store.NewInMemoryTenantStore()
	tn := seedTenant(t, s, "acme")
	seedBinding(t, s, tn, "shop.example.com", models.VerificationTLSActive)
	if err := s.Unbind(context.Background(), "shop.example.com", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := New(s)

	_, err := d.Resolve(context.Background(), hostname.Classification{
		Kind: hostname.KindCustomDomain, Domain: "shop.example.com",
	})
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("unbound domain must resolve to not found, got %v", err)
	}
}

// A single sub label in front of a registered root resolves through the root
// binding, even when the label is not the canonical slug.
func TestResolveRootFallback(t *testing.T) {
	s := store.NewInMemoryTenantStore()
	tn := seedTenant(t, s, "acme")
	seedBinding(t, s, tn, "example.com", models.VerificationTLSActive)
	d := New(s)

	for _, domain := range []string{"acme.example.com", "anything.example.com"} {
		got, err := d.Resolve(context.Background(), hostname.Classification{
			Kind: hostname.KindCustomDomain, Domain: domain,
		})
		if err != nil {
			t.Fatalf("expected fallback for %s: %v", domain, err)
		}
		if got.ID != tn.ID {
			t.Fatalf("fallback resolved wrong tenant for %s", domain)
		}
	}
}

// Deeper prefixes are ambiguous and must never fall back.
func TestResolveDeepPrefixNoFallback(t *testing.T) {
	s := store.NewInMemoryTenantStore()
	tn := seedTenant(t, s, "acme")
	seedBinding(t, s, tn, "example.com", models.VerificationTLSActive)
	d := New(s)

	_, err := d.Resolve(context.Background(), hostname.Classification{
		Kind: hostname.KindCustomDomain, Domain: "a.b.example.com",
	})
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("deep prefix must not fall back, got %v", err)
	}
}

func TestResolveFallbackSkipsInactiveRoot(t *testing.T) {
	s := store.NewInMemoryTenantStore()
	tn := seedTenant(t, s, "acme")
	seedBinding(t, s, tn, "example.com", models.VerificationFailed)
	d := New(s)

	_, err := d.Resolve(context.Background(), hostname.Classification{
		Kind: hostname.KindCustomDomain, Domain: "shop.example.com",
	})
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("fallback through failed root must miss, got %v", err)
	}
}

type failingStore struct{}

var errBoom = errors.New("store down")

func (failingStore) FindByID(context.Context, id.TenantID) (*models.Tenant, error) {
	return nil, errBoom
}
func (failingStore) FindBySlug(context.Context, string) (*models.Tenant, error) {
	return nil, errBoom
}
func (failingStore) FindBindingByDomain(context.Context, string) (*models.DomainBinding, error) {
	return nil, errBoom
}

func TestResolveBackendFailureIsUnavailable(t *testing.T) {
	d := New(failingStore{})

	_, err := d.Resolve(context.Background(), hostname.Classification{
		Kind: hostname.KindPlatformSubdomain, Slug: "acme",
	})
	if !dErrors.HasCode(err, dErrors.CodeUnavailable) {
		t.Fatalf("backend failure must map to unavailable, got %v", err)
	}
}
