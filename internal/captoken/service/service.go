// Package service implements the capability token lifecycle. Tokens are
// bearer credentials that bypass session auth by design, so every check here
// is conservative and order-sensitive.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	tokenmetrics "storegate/internal/captoken/metrics"
	"storegate/internal/captoken/models"
	"storegate/internal/platform/tracer"
	"storegate/internal/sentinel"
	tenantmodels "storegate/internal/tenant/models"
	id "storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/secrets"
)

// TokenStore persists token records. ConsumeUse must be an atomic
// increment-and-check; a read-then-write implementation is a race and must
// not be used.
type TokenStore interface {
	Create(ctx context.Context, rec *models.Record) error
	FindByHash(ctx context.Context, hash string) (*models.Record, error)
	FindByID(ctx context.Context, tokenID id.TokenID) (*models.Record, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Record, error)
	ConsumeUse(ctx context.Context, tokenID id.TokenID, now time.Time) (*models.Record, error)
	Revoke(ctx context.Context, tokenID id.TokenID, at time.Time) error
}

// SubjectStore reads the clients tokens are issued to.
type SubjectStore interface {
	FindByID(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error)
}

// TenantLookup loads the tenant a validated token belongs to.
type TenantLookup interface {
	FindByID(ctx context.Context, tenantID id.TenantID) (*tenantmodels.Tenant, error)
}

// AuditPublisher records token lifecycle events for the audit trail.
type AuditPublisher interface {
	Emit(ctx context.Context, action string, attrs ...any)
}

// Service orchestrates issue, validate, consume, and revoke.
type Service struct {
	tokens   TokenStore
	subjects SubjectStore
	tenants  TenantLookup
	hasher   *Hasher
	logger   *slog.Logger
	tracer   tracer.Tracer
	metrics  *tokenmetrics.Metrics
	audit    AuditPublisher
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithMetrics(m *tokenmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithClock overrides the time source in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(tokens TokenStore, subjects SubjectStore, tenants TenantLookup, hasher *Hasher, opts ...Option) *Service {
	s := &Service{
		tokens:   tokens,
		subjects: subjects,
		tenants:  tenants,
		hasher:   hasher,
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueRequest carries the operator's parameters for a new token.
type IssueRequest struct {
	TenantID         id.TenantID
	SubjectID        id.SubjectID
	TTLDays          int
	MaxUses          *int
	Scopes           []string
	LinkedResourceID *uuid.UUID
}

const (
	defaultTTLDays = 30
	maxTTLDays     = 365
)

// Issue mints a new capability token. The plaintext is returned exactly once
// and never persisted or logged; only the keyed hash is stored.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (models.Plaintext, *models.Record, error) {
	if req.TenantID.IsNil() {
		return "", nil, dErrors.New(dErrors.CodeInvalidInput, "tenant ID is required")
	}
	if req.SubjectID.IsNil() {
		return "", nil, dErrors.New(dErrors.CodeInvalidInput, "subject ID is required")
	}

	scopes := models.FilterScopes(req.Scopes)
	if len(scopes) == 0 {
		return "", nil, dErrors.New(dErrors.CodeInvalidInput, "no valid scopes requested")
	}
	if req.MaxUses != nil && *req.MaxUses < 1 {
		return "", nil, dErrors.New(dErrors.CodeInvalidInput, "max uses must be at least 1")
	}
	ttlDays := req.TTLDays
	if ttlDays <= 0 {
		ttlDays = defaultTTLDays
	}
	if ttlDays > maxTTLDays {
		return "", nil, dErrors.New(dErrors.CodeInvalidInput, "token lifetime exceeds one year")
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil, dErrors.Wrap(err, dErrors.CodeNotFound, "subject not found")
		}
		return "", nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "subject lookup failed")
	}
	if subject.TenantID != req.TenantID {
		// Cross-tenant issuance would leak one tenant's client to another.
		return "", nil, dErrors.New(dErrors.CodeForbidden, "subject belongs to another tenant")
	}
	if !subject.HasContactInfo() {
		return "", nil, dErrors.New(dErrors.CodeValidation, "subject has no contact information")
	}

	raw, err := secrets.Generate()
	if err != nil {
		return "", nil, err
	}
	plaintext := models.Plaintext(raw)

	now := s.now().UTC()
	rec := &models.Record{
		ID:               id.TokenID(uuid.New()),
		TenantID:         req.TenantID,
		SubjectID:        req.SubjectID,
		TokenHash:        s.hasher.Hash(plaintext),
		IssuedAt:         now,
		ExpiresAt:        now.AddDate(0, 0, ttlDays),
		MaxUses:          req.MaxUses,
		Scopes:           scopes,
		LinkedResourceID: req.LinkedResourceID,
	}
	if err := s.tokens.Create(ctx, rec); err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store token")
	}

	s.emitAudit(ctx, "capability_token_issued",
		"token_id", rec.ID.String(),
		"tenant_id", rec.TenantID.String(),
		"subject_id", rec.SubjectID.String(),
		"expires_at", rec.ExpiresAt,
	)
	if s.metrics != nil {
		s.metrics.TokensIssued.Inc()
	}
	return plaintext, rec, nil
}

// Validation is the outcome of a successful check: the record plus the
// tenant and subject it resolves to.
type Validation struct {
	Record  *models.Record
	Tenant  *tenantmodels.Tenant
	Subject *models.Subject
}

// Validate checks a plaintext token without consuming a use. The checks run
// in a fixed order, each a hard fail: hash lookup, revocation, expiry, use
// budget. Displaying token status never counts as a use.
func (s *Service) Validate(ctx context.Context, plaintext models.Plaintext) (*Validation, error) {
	ctx, span := s.tracer.Start(ctx, "captoken.validate")
	start := s.now()

	v, err := s.validate(ctx, plaintext)
	s.observeValidation(err, start)
	span.End(err)
	return v, err
}

func (s *Service) validate(ctx context.Context, plaintext models.Plaintext) (*Validation, error) {
	rec, err := s.tokens.FindByHash(ctx, s.hasher.Hash(plaintext))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeTokenNotFound, "unknown token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "token lookup failed")
	}
	if rec.RevokedAt != nil {
		return nil, dErrors.New(dErrors.CodeTokenRevoked, "token revoked")
	}
	if !s.now().Before(rec.ExpiresAt) {
		return nil, dErrors.New(dErrors.CodeTokenExpired, "token expired")
	}
	if rec.Exhausted() {
		return nil, dErrors.New(dErrors.CodeTokenExhausted, "token uses exhausted")
	}

	tenant, err := s.tenants.FindByID(ctx, rec.TenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "tenant lookup failed")
	}
	subject, err := s.subjects.FindByID(ctx, rec.SubjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "subject lookup failed")
	}
	return &Validation{Record: rec, Tenant: tenant, Subject: subject}, nil
}

// Consume validates the token, checks that it grants the scope the action
// requires, and then atomically spends one use. The use is charged only
// here, when an actual access happens, so page loads and retries of the
// status endpoint cannot exhaust a limited-use link.
func (s *Service) Consume(ctx context.Context, plaintext models.Plaintext, required models.Scope) (*Validation, error) {
	ctx, span := s.tracer.Start(ctx, "captoken.consume",
		tracer.String("scope", string(required)))
	var err error
	defer func() { span.End(err) }()

	var v *Validation
	v, err = s.validate(ctx, plaintext)
	if err != nil {
		s.observeValidation(err, s.now())
		return nil, err
	}
	if !v.Record.HasScope(required) {
		err = dErrors.New(dErrors.CodeForbidden, "token does not grant "+string(required))
		return nil, err
	}

	rec, cErr := s.tokens.ConsumeUse(ctx, v.Record.ID, s.now().UTC())
	if cErr != nil {
		err = s.translateConsume(cErr)
		return nil, err
	}
	v.Record = rec

	s.emitAudit(ctx, "capability_token_used",
		"token_id", rec.ID.String(),
		"tenant_id", rec.TenantID.String(),
		"scope", string(required),
		"use_count", rec.UseCount,
	)
	if s.metrics != nil {
		s.metrics.Consumed.Inc()
	}
	return v, nil
}

func (s *Service) translateConsume(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrRevoked):
		return dErrors.Wrap(err, dErrors.CodeTokenRevoked, "token revoked")
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.Wrap(err, dErrors.CodeTokenExpired, "token expired")
	case errors.Is(err, sentinel.ErrExhausted):
		return dErrors.Wrap(err, dErrors.CodeTokenExhausted, "token uses exhausted")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeTokenNotFound, "unknown token")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "token consume failed")
	}
}

// Revoke sets the revocation timestamp. Revoking an already-revoked token is
// a no-op success. A tenant may only revoke its own tokens.
func (s *Service) Revoke(ctx context.Context, tenantID id.TenantID, tokenID id.TokenID) error {
	rec, err := s.tokens.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "token not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "token lookup failed")
	}
	if rec.TenantID != tenantID {
		// Report the same shape as a miss so tokens cannot be enumerated
		// across tenants.
		return dErrors.New(dErrors.CodeNotFound, "token not found")
	}

	if err := s.tokens.Revoke(ctx, tokenID, s.now().UTC()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	s.emitAudit(ctx, "capability_token_revoked",
		"token_id", tokenID.String(),
		"tenant_id", tenantID.String(),
	)
	if s.metrics != nil {
		s.metrics.Revoked.Inc()
	}
	return nil
}

// List returns a tenant's token records, hash-only, newest first.
func (s *Service) List(ctx context.Context, tenantID id.TenantID) ([]*models.Record, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant ID is required")
	}
	recs, err := s.tokens.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tokens")
	}
	return recs, nil
}

func (s *Service) observeValidation(err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	result := "valid"
	if err != nil {
		result = string(dErrors.CodeOf(err))
	}
	s.metrics.ObserveValidation(result, start)
}

func (s *Service) emitAudit(ctx context.Context, action string, attrs ...any) {
	if s.audit != nil {
		s.audit.Emit(ctx, action, attrs...)
	}
}
