package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"storegate/internal/audit"
	tokenhandler "storegate/internal/captoken/handler"
	tokenmetrics "storegate/internal/captoken/metrics"
	tokenservice "storegate/internal/captoken/service"
	tokenstore "storegate/internal/captoken/store"
	"storegate/internal/gate"
	"storegate/internal/gateway"
	gwmetrics "storegate/internal/gateway/metrics"
	"storegate/internal/hostname"
	"storegate/internal/platform/config"
	"storegate/internal/platform/database"
	"storegate/internal/platform/health"
	"storegate/internal/platform/httpserver"
	"storegate/internal/platform/logger"
	redisclient "storegate/internal/platform/redis"
	"storegate/internal/platform/tracer"
	"storegate/internal/ratelimit"
	"storegate/internal/routes"
	"storegate/internal/session"
	"storegate/internal/tenant/directory"
	tenantstore "storegate/internal/tenant/store"
	httptransport "storegate/internal/transport/http"
	"storegate/migrations"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Store selection is config-driven: a DATABASE_URL switches the tenant and
// token stores to postgres, a REDIS_URL switches the probe lockout store to
// redis, and without either the process runs fully in-memory for local dev.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.Env)

	log.Info("initializing storegate",
		"addr", cfg.Addr,
		"env", cfg.Env,
		"platform_domains", cfg.PlatformDomains,
	)

	stores, cleanup, err := buildStores(cfg)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	hasher, err := tokenservice.NewHasher(cfg.TokenHashSecret)
	if err != nil {
		log.Error("token hasher initialization failed", "error", err)
		os.Exit(1)
	}

	auditPub := audit.NewPublisher(log)
	traces := tracer.NewOTel()

	tokenSvc := tokenservice.New(stores.tokens, stores.subjects, stores.tenants, hasher,
		tokenservice.WithLogger(log),
		tokenservice.WithMetrics(tokenmetrics.New()),
		tokenservice.WithTracer(traces),
		tokenservice.WithAuditPublisher(auditPub),
	)

	lockout := ratelimit.New(stores.lockouts, ratelimit.WithLogger(log))

	tenantDir := directory.New(stores.tenants,
		directory.WithLogger(log),
		directory.WithMetrics(directory.NewMetrics()),
		directory.WithTracer(traces),
	)

	gw := gateway.New(
		hostname.New(cfg.PlatformDomains, cfg.ReservedSubdomains),
		routes.New(),
		tenantDir,
		session.NewJWTIntrospector(cfg.SessionVerifyKey, log),
		gate.New(stores.tenants, log),
		log,
		gateway.WithMetrics(gwmetrics.New()),
	)

	probes := health.New(cfg.Env)
	for name, check := range stores.healthChecks {
		probes.RegisterCheck(name, check)
	}

	tokens := tokenhandler.New(tokenSvc, lockout, auditPub, log)
	pages := httptransport.NewHandler(log)
	router := httptransport.NewRouter(pages, gw, tokens, probes, log)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// stores groups the persistence backends main selects from config.
type stores struct {
	tenants      tenantStoreIface
	tokens       tokenservice.TokenStore
	subjects     tokenservice.SubjectStore
	lockouts     ratelimit.Store
	healthChecks map[string]health.CheckFunc
}

// tenantStoreIface is the union of what the directory, the gate, and the
// token service need from the tenant store. Both store flavors satisfy it.
type tenantStoreIface interface {
	directory.Store
	gate.TenantLookup
}

func buildStores(cfg config.Server) (*stores, func(), error) {
	cleanup := func() {}

	s := &stores{healthChecks: make(map[string]health.CheckFunc)}
	if cfg.DatabaseURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		pool, err := database.New(dbCfg)
		if err != nil {
			return nil, cleanup, err
		}
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = pool.ApplyMigrations(migrateCtx, migrations.FS)
		cancel()
		if err != nil {
			_ = pool.Close()
			return nil, cleanup, err
		}
		s.tenants = tenantstore.NewPostgres(pool.DB())
		s.tokens = tokenstore.NewPostgresTokenStore(pool.DB())
		s.subjects = tokenstore.NewPostgresSubjectStore(pool.DB())
		s.healthChecks["database"] = pool.Health
		cleanup = func() { _ = pool.Close() }
	} else {
		s.tenants = tenantstore.NewInMemoryTenantStore()
		s.tokens = tokenstore.NewInMemoryTokenStore()
		s.subjects = tokenstore.NewInMemorySubjectStore()
	}

	if cfg.RedisURL != "" {
		rc, err := redisclient.New(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		s.lockouts = ratelimit.NewRedisStore(rc.Client)
		s.healthChecks["redis"] = rc.Health
		prev := cleanup
		cleanup = func() {
			_ = rc.Close()
			prev()
		}
	} else {
		s.lockouts = ratelimit.NewInMemoryStore()
	}

	return s, cleanup, nil
}
