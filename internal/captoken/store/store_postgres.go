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

	"storegate/internal/captoken/models"
	"storegate/internal/sentinel"
	id "storegate/pkg/domain"
)

// PostgresTokenStore persists capability tokens in PostgreSQL. Rows are
// append-and-update only; nothing is ever deleted.
type PostgresTokenStore struct {
	db *sql.DB
}

// NewPostgresTokenStore constructs a PostgreSQL-backed token store.
func NewPostgresTokenStore(db *sql.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

const tokenColumns = `id, tenant_id, subject_id, token_hash, issued_at, expires_at,
	max_uses, use_count, scopes, revoked_at, linked_resource_id`

func (s *PostgresTokenStore) Create(ctx context.Context, rec *models.Record) error {
	if rec == nil {
		return fmt.Errorf("token record is required")
	}
	query := `
		INSERT INTO capability_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		uuid.UUID(rec.TenantID),
		uuid.UUID(rec.SubjectID),
		rec.TokenHash,
		rec.IssuedAt,
		rec.ExpiresAt,
		nullInt(rec.MaxUses),
		rec.UseCount,
		scopesToText(rec.Scopes),
		nullTime(rec.RevokedAt),
		nullUUID(rec.LinkedResourceID),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create capability token: %w", err)
	}
	return nil
}

func (s *PostgresTokenStore) FindByHash(ctx context.Context, hash string) (*models.Record, error) {
	query := `SELECT ` + tokenColumns + ` FROM capability_tokens WHERE token_hash = $1`
	rec, err := scanToken(s.db.QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("capability token not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find capability token: %w", err)
	}
	return rec, nil
}

func (s *PostgresTokenStore) FindByID(ctx context.Context, tokenID id.TokenID) (*models.Record, error) {
	query := `SELECT ` + tokenColumns + ` FROM capability_tokens WHERE id = $1`
	rec, err := scanToken(s.db.QueryRowContext(ctx, query, uuid.UUID(tokenID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("capability token not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find capability token: %w", err)
	}
	return rec, nil
}

func (s *PostgresTokenStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Record, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM capability_tokens
		WHERE tenant_id = $1
		ORDER BY issued_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list capability tokens: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*models.Record
	for rows.Next() {
		rec, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan capability token: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ConsumeUse performs the serializable increment-and-check in a single
// conditional UPDATE: the WHERE clause re-validates revocation, expiry, and
// the use budget, so two concurrent uses of the last slot cannot both land.
// On a miss the row is re-read to classify the precise terminal state.
func (s *PostgresTokenStore) ConsumeUse(ctx context.Context, tokenID id.TokenID, now time.Time) (*models.Record, error) {
	query := `
		UPDATE capability_tokens
		SET use_count = use_count + 1
		WHERE id = $1
		  AND revoked_at IS NULL
		  AND expires_at > $2
		  AND (max_uses IS NULL OR use_count < max_uses)
		RETURNING ` + tokenColumns
	rec, err := scanToken(s.db.QueryRowContext(ctx, query, uuid.UUID(tokenID), now))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consume capability token: %w", err)
	}

	current, err := s.FindByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	switch {
	case current.RevokedAt != nil:
		return nil, sentinel.ErrRevoked
	case !now.Before(current.ExpiresAt):
		return nil, sentinel.ErrExpired
	default:
		return nil, sentinel.ErrExhausted
	}
}

// Revoke is idempotent: an already-revoked token keeps its original
// revocation time and the call still succeeds.
func (s *PostgresTokenStore) Revoke(ctx context.Context, tokenID id.TokenID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE capability_tokens
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1
	`, uuid.UUID(tokenID), at)
	if err != nil {
		return fmt.Errorf("revoke capability token: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke capability token rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type tokenRow interface {
	Scan(dest ...any) error
}

func scanToken(row tokenRow) (*models.Record, error) {
	var rec models.Record
	var tokenID, tenantID, subjectID uuid.UUID
	var maxUses sql.NullInt64
	var scopes string
	var revokedAt sql.NullTime
	var linked uuid.NullUUID
	if err := row.Scan(&tokenID, &tenantID, &subjectID, &rec.TokenHash, &rec.IssuedAt,
		&rec.ExpiresAt, &maxUses, &rec.UseCount, &scopes, &revokedAt, &linked); err != nil {
		return nil, err
	}
	rec.ID = id.TokenID(tokenID)
	rec.TenantID = id.TenantID(tenantID)
	rec.SubjectID = id.SubjectID(subjectID)
	if maxUses.Valid {
		v := int(maxUses.Int64)
		rec.MaxUses = &v
	}
	rec.Scopes = scopesFromText(scopes)
	if revokedAt.Valid {
		rec.RevokedAt = &revokedAt.Time
	}
	if linked.Valid {
		v := linked.UUID
		rec.LinkedResourceID = &v
	}
	return &rec, nil
}

func scopesToText(scopes []models.Scope) string {
	parts := make([]string, len(scopes))
	for i, s := range scopes {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func scopesFromText(raw string) []models.Scope {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]models.Scope, len(parts))
	for i, p := range parts {
		out[i] = models.Scope(p)
	}
	return out
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUUID(u *uuid.UUID) uuid.NullUUID {
	if u == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *u, Valid: true}
}

// PostgresSubjectStore reads the storefront's client contacts. The gateway
// only reads; client CRUD lives with the storefront application.
type PostgresSubjectStore struct {
	db *sql.DB
}

func NewPostgresSubjectStore(db *sql.DB) *PostgresSubjectStore {
	return &PostgresSubjectStore{db: db}
}

func (s *PostgresSubjectStore) FindByID(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	query := `
		SELECT id, tenant_id, name, COALESCE(email, '')
		FROM subjects
		WHERE id = $1
	`
	var sub models.Subject
	var sid, tid uuid.UUID
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(subjectID)).
		Scan(&sid, &tid, &sub.Name, &sub.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("subject not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	sub.ID = id.SubjectID(sid)
	sub.TenantID = id.TenantID(tid)
	return &sub, nil
}
