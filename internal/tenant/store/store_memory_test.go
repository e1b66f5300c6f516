package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"storegate/internal/sentinel"
	"storegate/internal/tenant/models"
	id "storegate/pkg/domain"
)

func newTenant(t *testing.T, slug string) *models.Tenant {
	t.Helper()
	tn, err := models.NewTenant(id.TenantID(uuid.New()), slug, "Tenant "+slug, time.Now())
	if err != nil {
		t.Fatalf("unexpected error building tenant: %v", err)
	}
	return tn
}

func TestCreateAndFind(t *testing.T) {
	s := NewInMemoryTenantStore()
	ctx := context.Background()

	tn := newTenant(t, "acme")
	if err := s.Create(ctx, tn); err != nil {
		t.Fatalf("unexpected error creating tenant: %v", err)
	}

	byID, err := s.FindByID(ctx, tn.ID)
	if err != nil {
		t.Fatalf("unexpected error finding by id: %v", err)
	}
	if byID.Slug != "acme" {
		t.Fatalf("expected slug acme, got %q", byID.Slug)
	}

	bySlug, err := s.FindBySlug(ctx, "ACME")
	if err != nil {
		t.Fatalf("expected slug lookup to be case insensitive: %v", err)
	}
	if bySlug.ID != tn.ID {
		t.Fatalf("slug lookup returned wrong tenant")
	}
}

func TestCreateDuplicateSlug(t *testing.T) {
	s := NewInMemoryTenantStore()
	ctx := context.Background()

	if err := s.Create(ctx, newTenant(t, "acme")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Create(ctx, newTenant(t, "acme")); !errors.Is(err, sentinel.ErrConflict) {
		t.Fatalf("expected conflict for duplicate slug, got %v", err)
	}
}

func TestFindMissing(t *testing.T) {
	s := NewInMemoryTenantStore()
	ctx := context.Background()

	if _, err := s.FindBySlug(ctx, "nope"); !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.FindBindingByDomain(ctx, "nope.example.com"); !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBindUnbindRebind(t *testing.T) {
	s := NewInMemoryTenantStore()
	ctx := context.Background()
	now := time.Now()

	tn := newTenant(t, "acme")
	if err := s.Create(ctx, tn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	binding := &models.DomainBinding{
		TenantID:  tn.ID,
		Slug:      tn.Slug,
		Domain:    "shop.example.com",
		State:     models.VerificationTLSActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Bind(ctx, binding); err != nil {
		t.Fatalf("unexpected error binding: %v", err)
	}

	// A second active binding on the same domain conflicts.
	other := newTenant(t, "rival")
	if err := s.Create(ctx, other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stolen := *binding
	stolen.TenantID = other.ID
	stolen.Slug = other.Slug
	if err := s.Bind(ctx, &stolen); !errors.Is(err, sentinel.ErrConflict) {
		t.Fatalf("expected conflict for double bind, got %v", err)
	}

	if err := s.Unbind(ctx, "shop.example.com", now); err != nil {
		t.Fatalf("unexpected error unbinding: %v", err)
	}
	got, err := s.FindBindingByDomain(ctx, "shop.example.com")
	if err != nil {
		t.Fatalf("unbound binding must stay readable: %v", err)
	}
	if got.Active() {
		t.Fatalf("unbound binding must not be active")
	}

	// After unbind the domain is free again.
	if err := s.Bind(ctx, &stolen); err != nil {
		t.Fatalf("expected rebind after unbind to succeed: %v", err)
	}
	got, err = s.FindBindingByDomain(ctx, "shop.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TenantID != other.ID {
		t.Fatalf("rebound domain must resolve to the new tenant")
	}
}

func TestBindingDomainCaseInsensitive(t *testing.T) {
	s := NewInMemoryTenantStore()
	ctx := context.Background()
	now := time.Now()

	tn := newTenant(t, "acme")
	if err := s.Create(ctx, tn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Bind(ctx, &models.DomainBinding{
		TenantID: tn.ID, Slug: tn.Slug, Domain: "Shop.Example.COM",
		State: models.VerificationTLSActive, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.FindBindingByDomain(ctx, "shop.example.com"); err != nil {
		t.Fatalf("expected case insensitive domain lookup: %v", err)
	}
}
