package models

import (
	"time"

	"github.com/google/uuid"

	id "storegate/pkg/domain"
)

// Scope is a named permission a capability token may carry.
type Scope string

const (
	ScopeView   Scope = "view"
	ScopePay    Scope = "pay"
	ScopeTrack  Scope = "track"
	ScopeCreate Scope = "create"
)

var allowedScopes = map[Scope]struct{}{
	ScopeView:   {},
	ScopePay:    {},
	ScopeTrack:  {},
	ScopeCreate: {},
}

// FilterScopes keeps only allow-listed scopes, deduplicated, preserving the
// caller's order. Unknown scopes are dropped silently; an empty result is the
// caller's signal to reject the request.
func FilterScopes(raw []string) []Scope {
	seen := make(map[Scope]struct{}, len(raw))
	out := make([]Scope, 0, len(raw))
	for _, r := range raw {
		s := Scope(r)
		if _, ok := allowedScopes[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Plaintext is the secret form of a capability token. It exists only in the
// issuance response and in the inbound URL segment; it is never persisted.
// The String method redacts so a stray log line cannot leak it.
type Plaintext string

func (p Plaintext) String() string { return "[redacted]" }

// Reveal returns the secret for embedding in the issuance response. Call
// sites are the audit trail for where plaintext escapes.
func (p Plaintext) Reveal() string { return string(p) }

// Record is the persisted, hash-only form of a capability token. Records are
// never physically deleted; terminal states are kept for audit.
type Record struct {
	ID        id.TokenID   `json:"id"`
	TenantID  id.TenantID  `json:"tenant_id"`
	SubjectID id.SubjectID `json:"subject_id"`
	// TokenHash is the keyed one-way hash of the plaintext; it uniquely
	// identifies at most one row.
	TokenHash string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	// MaxUses nil means unlimited.
	MaxUses          *int       `json:"max_uses,omitempty"`
	UseCount         int        `json:"use_count"`
	Scopes           []Scope    `json:"scopes"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	LinkedResourceID *uuid.UUID `json:"linked_resource_id,omitempty"`
}

// HasScope reports whether the token grants the scope.
func (r *Record) HasScope(s Scope) bool {
	for _, have := range r.Scopes {
		if have == s {
			return true
		}
	}
	return false
}

// Exhausted reports whether the usage limit has been reached.
func (r *Record) Exhausted() bool {
	return r.MaxUses != nil && r.UseCount >= *r.MaxUses
}

// UsesRemaining returns the remaining uses, or nil for unlimited tokens.
func (r *Record) UsesRemaining() *int {
	if r.MaxUses == nil {
		return nil
	}
	left := *r.MaxUses - r.UseCount
	if left < 0 {
		left = 0
	}
	return &left
}

// Subject is the external client a token represents. The contact channel is
// required at issuance because the link is delivered out of band.
type Subject struct {
	ID       id.SubjectID `json:"id"`
	TenantID id.TenantID  `json:"tenant_id"`
	Name     string       `json:"name"`
	Email    string       `json:"email"`
}

// HasContactInfo reports whether the subject can receive a link at all.
func (s *Subject) HasContactInfo() bool {
	return s != nil && s.Email != ""
}
