// Package directory resolves a classified hostname to a tenant. It is a
// read-only view over the tenant store; all binding writes happen in the
// domain-registration workflow.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"storegate/internal/hostname"
	"storegate/internal/sentinel"
	"storegate/internal/tenant/models"
	"storegate/internal/platform/tracer"
	id "storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
)

// Store is the read surface the directory needs.
type Store interface {
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	FindBindingByDomain(ctx context.Context, domain string) (*models.DomainBinding, error)
}

// Directory performs hostname-to-tenant resolution.
type Directory struct {
	store   Store
	logger  *slog.Logger
	tracer  tracer.Tracer
	metrics *Metrics
}

type Option func(*Directory)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) { d.logger = logger }
}

func WithTracer(t tracer.Tracer) Option {
	return func(d *Directory) { d.tracer = t }
}

func WithMetrics(m *Metrics) Option {
	return func(d *Directory) { d.metrics = m }
}

func New(store Store, opts ...Option) *Directory {
	d := &Directory{store: store, logger: slog.Default(), tracer: tracer.NewNoop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve maps a hostname classification to a tenant.
//
// A platform-subdomain slug is a direct lookup. A custom-domain candidate is
// an exact binding match; on a miss with three or more labels, the last-two-
// label root is tried once (never recursively) to cover clients who point a
// subdomain at a registered root domain's DNS without a binding of its own.
// A miss resolves to CodeNotFound, which callers route to a plain 404.
func (d *Directory) Resolve(ctx context.Context, c hostname.Classification) (*models.Tenant, error) {
	ctx, span := d.tracer.Start(ctx, "directory.resolve",
		tracer.String("hostname.kind", c.Kind.String()))
	var err error
	defer func() { span.End(err) }()

	var t *models.Tenant
	switch c.Kind {
	case hostname.KindPlatformSubdomain:
		t, err = d.resolveSlug(ctx, c.Slug)
	case hostname.KindCustomDomain:
		t, err = d.resolveDomain(ctx, c.Domain)
	default:
		err = dErrors.New(dErrors.CodeNotFound, "hostname is not tenant-bearing")
	}
	d.observe(c.Kind, err)
	return t, err
}

func (d *Directory) resolveSlug(ctx context.Context, slug string) (*models.Tenant, error) {
	start := time.Now()
	t, err := d.store.FindBySlug(ctx, slug)
	if err != nil {
		return nil, d.translate(err, "slug lookup failed")
	}
	d.observeDuration(start)
	return t, nil
}

func (d *Directory) resolveDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	start := time.Now()
	defer func() { d.observeDuration(start) }()

	b, err := d.store.FindBindingByDomain(ctx, domain)
	switch {
	case err == nil:
		if !b.Active() {
			return nil, dErrors.New(dErrors.CodeNotFound, "domain binding inactive")
		}
		return d.tenantOf(ctx, b)
	case errors.Is(err, sentinel.ErrNotFound):
		return d.resolveRootFallback(ctx, domain)
	default:
		return nil, d.translate(err, "domain lookup failed")
	}
}

// resolveRootFallback applies the subdomain-of-registered-root heuristic
// once. Only a single sub label falls back; deeper prefixes are ambiguous
// and resolve to NotFound rather than a guess.
func (d *Directory) resolveRootFallback(ctx context.Context, domain string) (*models.Tenant, error) {
	root, sub, ok := hostname.RootDomain(domain)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "domain not registered")
	}
	if sub == "" || len(hostname.Labels(sub)) > 1 {
		return nil, dErrors.New(dErrors.CodeNotFound, "ambiguous domain fallback")
	}

	b, err := d.store.FindBindingByDomain(ctx, root)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "domain not registered")
		}
		return nil, d.translate(err, "root domain lookup failed")
	}
	if !b.Active() {
		return nil, dErrors.New(dErrors.CodeNotFound, "root domain binding inactive")
	}

	// The registered root is unique per domain, so the fallback is
	// unambiguous; log when the label is not the canonical slug because that
	// usually means misconfigured customer DNS.
	if sub != b.Slug {
		d.logger.Info("domain fallback with non-canonical label",
			"domain", domain,
			"root", root,
			"label", sub,
			"canonical_slug", b.Slug,
		)
	}
	if d.metrics != nil {
		d.metrics.FallbackResolved.Inc()
	}
	return d.tenantOf(ctx, b)
}

func (d *Directory) tenantOf(ctx context.Context, b *models.DomainBinding) (*models.Tenant, error) {
	t, err := d.store.FindByID(ctx, b.TenantID)
	if err != nil {
		// A binding pointing at a missing tenant is a data integrity problem,
		// not a routine miss.
		return nil, d.translate(err, "binding references unknown tenant")
	}
	return t, nil
}

// translate maps store failures onto the domain taxonomy exactly once:
// misses stay NotFound, anything else is a backend failure the caller must
// treat as unavailable (fail closed on protected routes).
func (d *Directory) translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}

func (d *Directory) observe(kind hostname.Kind, err error) {
	if d.metrics == nil {
		return
	}
	result := "resolved"
	if err != nil {
		result = "miss"
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			result = "error"
		}
	}
	d.metrics.Resolutions.WithLabelValues(kind.String(), result).Inc()
}

func (d *Directory) observeDuration(start time.Time) {
	if d.metrics != nil {
		d.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	}
}
