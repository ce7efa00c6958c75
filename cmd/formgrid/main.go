package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/formgrid/formgrid/pkg/access"
	"github.com/formgrid/formgrid/pkg/audit"
	"github.com/formgrid/formgrid/pkg/config"
	"github.com/formgrid/formgrid/pkg/groups"
	"github.com/formgrid/formgrid/pkg/httputil"
	"github.com/formgrid/formgrid/pkg/middleware"
	"github.com/formgrid/formgrid/pkg/observability"
	"github.com/formgrid/formgrid/pkg/plans"
	"github.com/formgrid/formgrid/pkg/projects"
	"github.com/formgrid/formgrid/pkg/storage"
)

const version = "1.0.0"

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error(ctx, "failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("version", version).Info(ctx, "starting formgrid access service")

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error(ctx, "failed to initialize tracing")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error(ctx, "failed to open database")
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Error(ctx, "failed to ping database")
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Metering degrades without Redis; the service still decides access
		logger.WithError(err).Warn(ctx, "redis unreachable, call metering degraded")
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	planDefs, err := config.LoadPlanDefinitions(cfg.Access.PlansFile)
	if err != nil {
		logger.WithError(err).Error(ctx, "failed to load plan definitions")
		os.Exit(1)
	}

	projectStore := projects.NewCachedStore(
		projects.NewPostgresStore(db, logger),
		projects.CacheConfig{
			MaxEntries: cfg.Access.CacheMaxEntries,
			TTL:        cfg.Access.CacheTTL,
		},
	)
	teamStore := projects.NewCachedTeamStore(
		projects.NewPostgresTeamStore(db),
		projects.CacheConfig{
			MaxEntries: cfg.Access.CacheMaxEntries,
			TTL:        cfg.Access.CacheTTL,
		},
	)

	metering := plans.NewRedisMeteringStore(redisClient)
	gate := plans.NewGate(plans.GateConfig{
		DefaultPlan:      plans.Plan(cfg.Access.DefaultPlan),
		PremiumOverride:  cfg.Access.PremiumOverride,
		BootstrapProject: cfg.Access.BootstrapProject,
		PremiumActions:   planDefs.PremiumActions,
		CallLimits:       planDefs.Limits(),
	}, metering, logger, metrics)

	groupResolver := groups.NewResolver(groups.NewPostgresSubmissionStore(db), logger, metrics)

	engine := access.NewEngine(projectStore, groupResolver, access.EngineConfig{
		DefaultPlan: plans.Plan(cfg.Access.DefaultPlan),
	}, logger, metrics)

	auditLogger := audit.NewMultiLogger(
		audit.NewSlogLogger(logger),
		audit.NewPostgresLogger(db, logger),
	)

	identity := middleware.NewIdentityMiddleware(cfg.Access.AdminKeySecret, logger)
	enforcer := middleware.NewEnforcer(engine, gate, projectStore, teamStore, metering, auditLogger, logger)

	router := mux.NewRouter()
	router.Use(httputil.RecoveryMiddleware)
	router.Use(observability.HTTPMetricsMiddleware(metrics))
	router.Use(identity.Handler)

	// Decision endpoint for internal callers; admin key required
	checkHandler := access.NewCheckHandler(engine, logger)
	router.Handle("/access/check",
		adminOnly(httputil.MaxBytesMiddleware(1<<20)(checkHandler))).Methods(http.MethodPost)

	// Storage signing, enforced against submission permissions
	if cfg.Storage.S3Bucket != "" {
		signer, err := storage.NewS3Signer(ctx, storage.S3Config{
			Bucket:    cfg.Storage.S3Bucket,
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			Expiry:    cfg.Storage.PresignExpiry,
		})
		if err != nil {
			logger.WithError(err).Error(ctx, "failed to initialize storage signer")
			os.Exit(1)
		}
		signRoute := router.PathPrefix("/project/{projectID}/form/{formID}/submission/{submissionID}/storage/s3").Subrouter()
		signRoute.Use(enforcer.Handler)
		signRoute.Handle("", storage.NewSignHandler(signer, logger)).Methods(http.MethodGet)
	} else {
		logger.Info(ctx, "no S3 bucket configured, storage signing disabled")
	}

	var handler http.Handler = router
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "formgrid")
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient, version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	go reportDBStats(ctx, db, metrics, logger)

	go func() {
		logger.WithField("addr", healthServer.Addr).Info(ctx, "health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error(ctx, "health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", server.Addr).Info(ctx, "server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error(ctx, "server failed")
			os.Exit(1)
		}
	}()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, server, healthServer)
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return observability.ShutdownOTel(shutdownCtx, otelProviders, logger)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return redisClient.Close()
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return db.Close()
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error(ctx, "shutdown failed")
		os.Exit(1)
	}
}

// adminOnly restricts a route to requests carrying the operator admin key
func adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.IdentityFromContext(r.Context())
		if identity == nil || !identity.AdminKey {
			httputil.WriteForbidden(w, "admin key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// reportDBStats feeds connection pool stats into the metrics gauges
func reportDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics, logger *observability.Logger) {
	defer observability.RecoverPanic(logger, "db stats reporter")
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}
