// Package httptransport assembles the HTTP surface: platform middleware, the
// gateway decision middleware, and the route tree the gateway's classifier
// mirrors. Handlers here delegate to domain services; the interesting logic
// lives behind them.
package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storegate/internal/captoken/handler"
	"storegate/internal/gateway"
	"storegate/internal/platform/health"
	"storegate/internal/platform/middleware"
)

// Handler is the thin page layer behind the gateway. Storefront, dashboard,
// and portal pages are rendered by downstream apps in production; here they
// answer with enough structure to exercise the routing contract.
type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// NewRouter wires all endpoints with middleware. The gateway middleware runs
// after request identity and logging so its decisions are observable, and
// before any route handler so no protected handler is reachable ungated.
func NewRouter(h *Handler, gw *gateway.Gateway, tokens *handler.Handler, probes *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(gw.Middleware)

	// Operational endpoints, always public.
	probes.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public capability-token endpoints.
	tokens.RegisterPublic(r)

	// Session-gated token management API.
	tokens.RegisterOperator(r)

	// Public storefront. Tenant hostnames land here via the gateway rewrite;
	// direct /site/{slug} requests are equally valid.
	r.Get("/site/{slug}", h.handleStorefront)
	r.Get("/site/{slug}/*", h.handleStorefront)

	// Staff dashboard.
	r.Get("/store/{slug}", h.handleDashboard)
	r.Get("/store/{slug}/*", h.handleDashboard)

	// Signed-in client portal.
	r.Get("/client", h.handlePortal)
	r.Get("/client/*", h.handlePortal)

	// Auth pages.
	r.Get("/", h.handleLanding)
	r.Get("/signin", h.handleSignin)
	r.Get("/signup", h.handleSignin)
	r.Get("/reset-password", h.handleSignin)

	return r
}

func (h *Handler) handleStorefront(w http.ResponseWriter, r *http.Request) {
	page := map[string]string{
		"page": "storefront",
		"slug": chi.URLParam(r, "slug"),
	}
	if t, ok := gateway.TenantFrom(r.Context()); ok {
		page["tenant"] = t.Name
	}
	writePage(w, http.StatusOK, page)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	page := map[string]string{
		"page": "dashboard",
		"slug": chi.URLParam(r, "slug"),
	}
	if sess, ok := gateway.SessionFrom(r.Context()); ok {
		page["user_id"] = sess.UserID.String()
	}
	writePage(w, http.StatusOK, page)
}

func (h *Handler) handlePortal(w http.ResponseWriter, r *http.Request) {
	page := map[string]string{"page": "client_portal"}
	if sess, ok := gateway.SessionFrom(r.Context()); ok {
		page["user_id"] = sess.UserID.String()
	}
	writePage(w, http.StatusOK, page)
}

func (h *Handler) handleLanding(w http.ResponseWriter, _ *http.Request) {
	writePage(w, http.StatusOK, map[string]string{"page": "landing"})
}

func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	writePage(w, http.StatusOK, map[string]string{
		"page":     "signin",
		"redirect": r.URL.Query().Get("redirect"),
	})
}

func writePage(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
