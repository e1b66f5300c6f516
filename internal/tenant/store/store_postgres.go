package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"storegate/internal/sentinel"
	"storegate/internal/tenant/models"
	id "storegate/pkg/domain"
)

// PostgresStore persists tenants and domain bindings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tenant store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, t *models.Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}
	query := `
		INSERT INTO tenants (id, slug, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(t.ID),
		t.Slug,
		t.Name,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create tenant rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	query := `
		SELECT id, slug, name, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	return scanTenant(s.db.QueryRowContext(ctx, query, uuid.UUID(tenantID)))
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `
		SELECT id, slug, name, created_at, updated_at
		FROM tenants
		WHERE slug = $1
	`
	return scanTenant(s.db.QueryRowContext(ctx, query, strings.ToLower(slug)))
}

func (s *PostgresStore) Bind(ctx context.Context, b *models.DomainBinding) error {
	if b == nil {
		return fmt.Errorf("binding is required")
	}
	// The partial unique index on (domain) WHERE unbound_at IS NULL enforces
	// at most one active binding per domain.
	query := `
		INSERT INTO tenant_domain_bindings (tenant_id, slug, domain, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(b.TenantID),
		b.Slug,
		strings.ToLower(b.Domain),
		string(b.State),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("bind domain: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBindingByDomain(ctx context.Context, domain string) (*models.DomainBinding, error) {
	query := `
		SELECT tenant_id, slug, domain, state, created_at, updated_at, unbound_at
		FROM tenant_domain_bindings
		WHERE domain = $1 AND unbound_at IS NULL
	`
	var b models.DomainBinding
	var tenantID uuid.UUID
	var state string
	var unboundAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, strings.ToLower(domain)).
		Scan(&tenantID, &b.Slug, &b.Domain, &state, &b.CreatedAt, &b.UpdatedAt, &unboundAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("binding not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find binding: %w", err)
	}
	b.TenantID = id.TenantID(tenantID)
	b.State = models.VerificationState(state)
	if unboundAt.Valid {
		b.UnboundAt = &unboundAt.Time
	}
	return &b, nil
}

func (s *PostgresStore) Unbind(ctx context.Context, domain string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenant_domain_bindings
		SET unbound_at = $2, updated_at = $2
		WHERE domain = $1 AND unbound_at IS NULL
	`, strings.ToLower(domain), now)
	if err != nil {
		return fmt.Errorf("unbind domain: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unbind domain rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type tenantRow interface {
	Scan(dest ...any) error
}

func scanTenant(row tenantRow) (*models.Tenant, error) {
	var t models.Tenant
	var tenantID uuid.UUID
	if err := row.Scan(&tenantID, &t.Slug, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	t.ID = id.TenantID(tenantID)
	return &t, nil
}

// isUniqueViolation matches postgres unique constraint errors (class 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
