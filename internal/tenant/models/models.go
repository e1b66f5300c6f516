package models

import (
	"regexp"
	"time"

	id "storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
)

// Tenant is one customer organization of the platform, identified by a
// unique slug and optionally a bound custom domain.
type Tenant struct {
	ID        id.TenantID `json:"id"`
	Slug      string      `json:"slug"`
	Name      string      `json:"name"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// NewTenant validates and builds a tenant. The slug is immutable once
// assigned; it must be a valid DNS label because it doubles as the platform
// subdomain.
func NewTenant(tenantID id.TenantID, slug, name string, now time.Time) (*Tenant, error) {
	if !slugPattern.MatchString(slug) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant slug must be a valid DNS label")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name must be 128 characters or less")
	}
	return &Tenant{
		ID:        tenantID,
		Slug:      slug,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// VerificationState tracks the domain-verification workflow. The workflow
// itself is owned elsewhere; the gateway only reads the state.
type VerificationState string

const (
	VerificationUnverified  VerificationState = "unverified"
	VerificationDNSVerified VerificationState = "dns_verified"
	VerificationTLSActive   VerificationState = "tls_active"
	VerificationFailed      VerificationState = "failed"
)

// DomainBinding binds one custom domain to a tenant. At most one active
// binding exists per custom domain. Bindings are never hard-deleted, only
// unbound, so audit history survives.
type DomainBinding struct {
	TenantID id.TenantID `json:"tenant_id"`
	// Slug is the tenant's canonical slug, denormalized onto the binding so
	// domain resolution needs a single read.
	Slug      string            `json:"slug"`
	Domain    string            `json:"domain"`
	State     VerificationState `json:"state"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	UnboundAt *time.Time        `json:"unbound_at,omitempty"`
}

// Active reports whether the binding may resolve requests. Failed or unbound
// bindings are treated as missing.
func (b *DomainBinding) Active() bool {
	return b != nil && b.UnboundAt == nil && b.State != VerificationFailed
}

// Unbind detaches the domain without deleting the row. Idempotent.
func (b *DomainBinding) Unbind(now time.Time) {
	if b.UnboundAt == nil {
		b.UnboundAt = &now
		b.UpdatedAt = now
	}
}
