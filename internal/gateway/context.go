package gateway

import (
	"context"

	"storegate/internal/session"
	"storegate/internal/tenant/models"
)

type (
	sessionKey struct{}
	tenantKey  struct{}
)

// WithSession stores the introspected session for downstream handlers.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom retrieves the session the gateway attached, if any.
func SessionFrom(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*session.Session)
	return s, ok && s != nil
}

// WithTenant stores the resolved tenant for downstream handlers.
func WithTenant(ctx context.Context, t *models.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

// TenantFrom retrieves the tenant the gateway resolved, if any.
func TenantFrom(ctx context.Context) (*models.Tenant, bool) {
	t, ok := ctx.Value(tenantKey{}).(*models.Tenant)
	return t, ok && t != nil
}
