// Package gateway is the request-time tenant-resolution and access layer.
// For every inbound request it decides, in a fixed order, whether to
// redirect (protocol and www normalization, blocked paths, session gate),
// rewrite internally (tenant hostnames onto canonical storefront routes), or
// pass through. First match wins; no request ever receives two redirects.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"storegate/internal/gate"
	gwmetrics "storegate/internal/gateway/metrics"
	"storegate/internal/hostname"
	"storegate/internal/routes"
	"storegate/internal/session"
	tenantmodels "storegate/internal/tenant/models"
	dErrors "storegate/pkg/domain-errors"
)

// DirectoryResolver maps a classified hostname to a tenant.
type DirectoryResolver interface {
	Resolve(ctx context.Context, c hostname.Classification) (*tenantmodels.Tenant, error)
}

// Gateway wires the pure classifiers to the directory, session gate, and
// rewriter. It holds no per-request state.
type Gateway struct {
	hostnames *hostname.Classifier
	routes    *routes.Classifier
	directory DirectoryResolver
	sessions  session.Introspector
	gate      *gate.Gate
	logger    *slog.Logger
	metrics   *gwmetrics.Metrics
	local     map[string]struct{}
}

type Option func(*Gateway)

func WithMetrics(m *gwmetrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithLocalHosts marks hostnames exempt from the HTTPS upgrade.
func WithLocalHosts(hosts ...string) Option {
	return func(g *Gateway) {
		for _, h := range hosts {
			g.local[strings.ToLower(h)] = struct{}{}
		}
	}
}

func New(
	hostnames *hostname.Classifier,
	routeClassifier *routes.Classifier,
	directory DirectoryResolver,
	sessions session.Introspector,
	sessionGate *gate.Gate,
	logger *slog.Logger,
	opts ...Option,
) *Gateway {
	g := &Gateway{
		hostnames: hostnames,
		routes:    routeClassifier,
		directory: directory,
		sessions:  sessions,
		gate:      sessionGate,
		logger:    logger,
		local: map[string]struct{}{
			"localhost": {},
			"127.0.0.1": {},
			"[::1]":     {},
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware applies the full decision chain in order: (1) HTTPS upgrade,
// (2) www strip, (3) blocked-legacy redirect, (4) tenant-hostname rewrite,
// (5) session gate. Redirect steps return immediately so only one redirect
// can ever be issued.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := hostname.Normalize(r.Host)

		// (1) Protocol upgrade for non-local hosts. Idempotent: an
		// already-secure request passes straight through.
		if !g.isLocal(host) && !isSecure(r) {
			g.observe("https_upgrade")
			http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
			return
		}

		// (2) Strip www. from non-platform hostnames before tenant
		// resolution so www and bare forms cannot split one tenant in two.
		if bare, had := hostname.StripWWW(host); had && !g.hostnames.IsPlatform(host) {
			g.observe("www_strip")
			http.Redirect(w, r, scheme(r)+"://"+bare+r.URL.RequestURI(), http.StatusMovedPermanently)
			return
		}

		hostClass := g.hostnames.Classify(host)
		verdict := g.routes.Classify(r.URL.Path)

		// (3) Blocked legacy paths redirect to sign-in regardless of auth
		// state; stale bookmarks never reach removed functionality.
		if verdict.Kind == routes.KindBlockedLegacy {
			g.observe("blocked_legacy")
			http.Redirect(w, r, gate.SigninPath, http.StatusFound)
			return
		}

		tenant, sess, err := g.lookup(r, hostClass)
		if err != nil {
			g.failClosed(w, r, next, verdict, err)
			return
		}

		// (4) Tenant hostnames rewrite onto the canonical internal prefix.
		// The URL shown to the client does not change.
		if tenantBearing(hostClass) {
			if tenant == nil {
				g.observe("not_found")
				http.NotFound(w, r)
				return
			}
			if rewritten, ok := rewritePath(r.URL.Path, verdict, tenant.Slug); ok {
				r.URL.Path = rewritten
				verdict = g.routes.Classify(rewritten)
				if g.metrics != nil {
					g.metrics.Rewrites.Inc()
				}
			}
		}

		// (5) Session gate.
		result := g.gate.Decide(r.Context(), verdict, sess, r.URL.Path)
		switch result.Decision {
		case gate.RedirectSignin:
			g.observe("redirect_signin")
			http.Redirect(w, r, result.Location, http.StatusFound)
		case gate.RedirectTenantHome:
			g.observe("redirect_tenant_home")
			http.Redirect(w, r, result.Location, http.StatusFound)
		default:
			g.observe("allow")
			ctx := r.Context()
			if sess != nil {
				ctx = WithSession(ctx, sess)
			}
			if tenant != nil {
				ctx = WithTenant(ctx, tenant)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	})
}

// lookup resolves the tenant and introspects the session concurrently; both
// are independent reads. An invalid session credential degrades to "no
// session"; only infrastructure failures propagate.
func (g *Gateway) lookup(r *http.Request, hostClass hostname.Classification) (*tenantmodels.Tenant, *session.Session, error) {
	var (
		tenant *tenantmodels.Tenant
		sess   *session.Session
	)

	eg, ctx := errgroup.WithContext(r.Context())

	if tenantBearing(hostClass) {
		eg.Go(func() error {
			t, err := g.directory.Resolve(ctx, hostClass)
			switch {
			case err == nil:
				tenant = t
				return nil
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				return nil
			default:
				return err
			}
		})
	}

	if credential, ok := session.FromRequest(r); ok {
		eg.Go(func() error {
			s, err := g.sessions.Introspect(ctx, credential)
			switch {
			case err == nil:
				sess = s
				return nil
			case dErrors.HasCode(err, dErrors.CodeUnauthorized):
				// Expired or garbage cookie: treat as signed out.
				return nil
			default:
				return err
			}
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return tenant, sess, nil
}

// failClosed applies the backend-failure policy: always-public routes stay
// reachable, everything else is denied via the sign-in redirect.
func (g *Gateway) failClosed(w http.ResponseWriter, r *http.Request, next http.Handler, verdict routes.Verdict, err error) {
	g.logger.ErrorContext(r.Context(), "gateway lookup failed",
		"error", err,
		"host", r.Host,
		"path", r.URL.Path,
	)
	if verdict.Kind == routes.KindAlwaysPublic {
		// Fail open only for routes that need neither tenant nor session;
		// the handler behind the route decides what it can still serve.
		g.observe("allow_degraded")
		next.ServeHTTP(w, r)
		return
	}
	g.observe("fail_closed")
	http.Redirect(w, r, gate.SigninPath, http.StatusFound)
}

func (g *Gateway) isLocal(host string) bool {
	_, ok := g.local[host]
	return ok
}

func (g *Gateway) observe(decision string) {
	if g.metrics != nil {
		g.metrics.Decisions.WithLabelValues(decision).Inc()
	}
}

func tenantBearing(c hostname.Classification) bool {
	return c.Kind == hostname.KindPlatformSubdomain || c.Kind == hostname.KindCustomDomain
}

// rewritePath maps a public path on a tenant hostname onto the canonical
// internal storefront prefix. Paths that already address an internal surface
// (dashboard, client portal, token endpoints, assets, auth pages) are left
// alone.
func rewritePath(path string, verdict routes.Verdict, slug string) (string, bool) {
	if path == "/" {
		return "/site/" + slug, true
	}
	// Only unclaimed paths are storefront pages; every classified prefix is
	// an internal surface with its own semantics.
	if verdict.Kind == routes.KindProtected && verdict.Rule == "default_deny" {
		return "/site/" + slug + path, true
	}
	return "", false
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func scheme(r *http.Request) string {
	if isSecure(r) {
		return "https"
	}
	return "http"
}
