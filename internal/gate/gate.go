// Package gate decides, per request, whether a classified route may proceed
// for the current session. It is routing-layer authorization only: tenant
// membership and role checks belong to the page and handler layer.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"storegate/internal/routes"
	"storegate/internal/sentinel"
	"storegate/internal/session"
	"storegate/internal/tenant/models"
	id "storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
)

// Decision is the gate's verdict.
type Decision int

const (
	Allow Decision = iota
	RedirectSignin
	RedirectTenantHome
)

// Result pairs a decision with the redirect target, when there is one.
type Result struct {
	Decision Decision
	Location string
}

// TenantLookup resolves a session's tenant for the tenant-home redirect.
type TenantLookup interface {
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
}

// Gate evaluates route verdicts against sessions.
type Gate struct {
	tenants TenantLookup
	logger  *slog.Logger
}

func New(tenants TenantLookup, logger *slog.Logger) *Gate {
	return &Gate{tenants: tenants, logger: logger}
}

// SigninPath is where protected traffic without a session is sent. The
// originally requested path rides along so post-login flow can restore it.
const SigninPath = "/signin"

// Decide applies the session gate. Backend lookup failures fail closed for
// protected routes; always-public routes never reach the gate.
func (g *Gate) Decide(ctx context.Context, verdict routes.Verdict, sess *session.Session, requestedPath string) Result {
	switch verdict.Kind {
	case routes.KindAlwaysPublic:
		return Result{Decision: Allow}

	case routes.KindBlockedLegacy:
		// Deprecated surfaces redirect to sign-in no matter the auth state.
		return Result{Decision: RedirectSignin, Location: SigninPath}

	case routes.KindPublicAuth:
		return g.decidePublicAuth(ctx, sess)

	default:
		if sess == nil {
			return Result{
				Decision: RedirectSignin,
				Location: SigninPath + "?redirect=" + url.QueryEscape(requestedPath),
			}
		}
		return Result{Decision: Allow}
	}
}

// decidePublicAuth sends signed-in users with a resolvable tenant to their
// tenant home; users without one are allowed through so onboarding can
// complete.
func (g *Gate) decidePublicAuth(ctx context.Context, sess *session.Session) Result {
	if sess == nil || !sess.HasTenant() {
		return Result{Decision: Allow}
	}

	t, err := g.tenants.FindByID(ctx, sess.TenantID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			// Public-auth pages stay reachable when the lookup backend is
			// down; showing the sign-in page to a signed-in user is the
			// benign failure here.
			g.logger.Warn("tenant lookup failed on public-auth route", "error", err)
		}
		return Result{Decision: Allow}
	}
	return Result{Decision: RedirectTenantHome, Location: TenantHomePath(t.Slug)}
}

// TenantHomePath is the staff dashboard root for a tenant.
func TenantHomePath(slug string) string {
	return "/store/" + slug
}
