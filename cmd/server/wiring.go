package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	atthandler "qrpass/internal/attendance/handler"
	attmetrics "qrpass/internal/attendance/metrics"
	"qrpass/internal/attendance/reconcile"
	"qrpass/internal/attendance/scan"
	attservice "qrpass/internal/attendance/service"
	attstore "qrpass/internal/attendance/store"
	"qrpass/internal/audit"
	credhandler "qrpass/internal/credential/handler"
	credmetrics "qrpass/internal/credential/metrics"
	credservice "qrpass/internal/credential/service"
	credstore "qrpass/internal/credential/store"
	"qrpass/internal/credential/token"
	devhandler "qrpass/internal/device/handler"
	devservice "qrpass/internal/device/service"
	devstore "qrpass/internal/device/store"
	jwttoken "qrpass/internal/jwt_token"
	"qrpass/internal/platform/config"
	"qrpass/internal/platform/database"
	"qrpass/internal/platform/health"
	"qrpass/internal/platform/kafka/producer"
	redisclient "qrpass/internal/platform/redis"
	"qrpass/internal/platform/tracer"
	"qrpass/internal/seeder"
	"qrpass/migrations"
	"qrpass/pkg/platform/circuit"
	adminmw "qrpass/pkg/platform/middleware/admin"
	"qrpass/pkg/platform/middleware/auth"
	"qrpass/pkg/platform/middleware/request"
	"qrpass/pkg/platform/middleware/requesttime"
)

const (
	redisStatsInterval = 30 * time.Second
	auditBufferSize    = 1024
	jwtAudience        = "qrpass-devices"
	deviceTokenTTL     = 30 * 24 * time.Hour
)

type credentialStore interface {
	credservice.Store
	scan.CredentialReader
}

type ledgerStore interface {
	scan.Ledger
	reconcile.Ledger
	attservice.Ledger
}

type usageStore interface {
	scan.UsageRecorder
	attservice.UsageReader
}

// infra holds the optional backing services. Nil members mean the in-memory
// fallback is in use.
type infra struct {
	db       *database.Pool
	redis    *redisclient.Client
	producer *producer.Producer
	auditor  *audit.Publisher
}

func buildInfra(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infra, error) {
	out := &infra{}

	pool, err := database.New(cfg.Database)
	if err != nil {
		return nil, err
	}
	out.db = pool
	if pool != nil && cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
			out.Close(log)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("database migrations applied")
	}

	rc, err := redisclient.New(cfg.Redis)
	if err != nil {
		out.Close(log)
		return nil, err
	}
	out.redis = rc

	var auditStore audit.Store = audit.NewInMemoryStore()
	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(cfg.Kafka, log)
		if err != nil {
			out.Close(log)
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		out.producer = p
		auditStore = audit.NewKafkaStore(p, cfg.Kafka.AuditTopic)
	}
	out.auditor = audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(auditBufferSize),
		audit.WithPublisherLogger(log),
	)
	return out, nil
}

func (i *infra) Close(log *slog.Logger) {
	if i.auditor != nil {
		i.auditor.Close()
	}
	if i.producer != nil {
		if err := i.producer.Close(); err != nil {
			log.Warn("failed to close kafka producer", "error", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}
	if err := i.db.Close(); err != nil {
		log.Warn("failed to close database", "error", err)
	}
}

type app struct {
	router          http.Handler
	reconcileWorker *reconcile.Worker
}

func buildApp(cfg *config.Config, in *infra, log *slog.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	credMetrics := credmetrics.New(reg)
	attMetrics := attmetrics.New(reg)
	httpMetrics := request.NewMetrics(reg)
	trc := tracer.NewOTel("qrpass", otel.Tracer("qrpass"))

	var (
		credentials credentialStore
		ledger      ledgerStore
		devices     devservice.Store
	)
	if in.db != nil {
		credentials = credstore.NewPostgres(in.db.DB())
		ledger = attstore.NewPostgresLedger(in.db.DB())
		devices = devstore.NewPostgres(in.db.DB())
	} else {
		credentials = credstore.NewInMemoryStore()
		ledger = attstore.NewInMemoryLedger()
		devices = devstore.NewInMemoryStore()
	}

	var (
		usage    usageStore
		decision devservice.DecisionCache
	)
	if in.redis != nil {
		usage = attstore.NewRedisUsage(in.redis.Client, cfg.Redis.UsageTTL)
		decision = devstore.NewResilientDecisionCache(
			devstore.NewRedisDecisionCache(in.redis.Client),
			circuit.New("approval_cache"),
			log,
		)
	} else {
		usage = attstore.NewInMemoryUsage()
		decision = devstore.NewInMemoryDecisionCache()
	}

	codec, err := token.New([]byte(cfg.Token.Secret))
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	deviceSvc := devservice.New(devices,
		devservice.WithCache(decision),
		devservice.WithCacheTTL(cfg.Device.ApprovalCacheTTL),
		devservice.WithLogger(log),
		devservice.WithAuditor(in.auditor),
		devservice.WithTracer(trc),
	)
	credSvc := credservice.New(credentials, codec,
		credservice.WithLogger(log),
		credservice.WithMetrics(credMetrics),
		credservice.WithTracer(trc),
		credservice.WithAuditor(in.auditor),
		credservice.WithApprovalGate(deviceSvc),
		credservice.WithMaxActive(cfg.Generation.MaxActivePerOwner),
		credservice.WithMaxExpiryDays(cfg.Generation.MaxExpiryDays),
	)
	pipeline := scan.New(credentials, ledger,
		scan.WithLogger(log),
		scan.WithMetrics(attMetrics),
		scan.WithTracer(trc),
		scan.WithAuditor(in.auditor),
		scan.WithUsage(usage),
		scan.WithCooldown(scan.NewCooldown(cfg.Scan.SameTokenCooldown, cfg.Scan.AnyTokenCooldown, cfg.Scan.CooldownCapacity)),
		scan.WithSessions(scan.NewSessions(cfg.Scan.DebounceDefault, cfg.Scan.DebounceSame, 0)),
		scan.WithDuplicateWindow(cfg.Scan.DuplicateWindow),
		scan.WithScannerInfo(cfg.Scan.ScannerInfo),
	)
	reconciler := reconcile.New(ledger,
		reconcile.WithLogger(log),
		reconcile.WithMetrics(attMetrics),
		reconcile.WithAuditor(in.auditor),
	)
	reports := attservice.New(ledger, usage,
		attservice.WithLogger(log),
		attservice.WithRecentLimit(cfg.Scan.RecentLimit),
	)

	if cfg.Server.SeedDemo {
		if err := seeder.New(deviceSvc, credSvc, log).SeedAll(context.Background()); err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	out := &app{}
	if cfg.Reconcile.Enabled {
		w, err := reconcile.NewWorker(reconciler,
			reconcile.WithInterval(cfg.Reconcile.Interval),
			reconcile.WithWorkerLogger(log),
		)
		if err != nil {
			return nil, err
		}
		out.reconcileWorker = w
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, jwtAudience, deviceTokenTTL)

	healthHandler := health.New(cfg.Server.Environment)
	if in.db != nil {
		healthHandler.RegisterCheck("postgres", in.db.Health)
	}
	if in.redis != nil {
		healthHandler.RegisterCheck("redis", in.redis.Health)
	}
	if in.producer != nil {
		healthHandler.RegisterCheck("kafka", in.producer.Health)
	}

	deviceHTTP := devhandler.New(deviceSvc, jwtService, log)
	credHTTP := credhandler.New(credSvc, log)
	attHTTP := atthandler.New(pipeline, reports, reconciler, log)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.ClientIP(cfg.Server.TrustProxy))
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(request.Latency(httpMetrics))
	r.Use(requesttime.Middleware)

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
		r.Use(request.BodyLimit(cfg.Server.MaxBodyBytes))
		r.Use(request.ContentTypeJSON)

		deviceHTTP.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireDevice(jwttoken.NewJWTServiceAdapter(jwtService), log))
			credHTTP.Register(r)
			attHTTP.Register(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(cfg.Server.AdminToken, log))
			deviceHTTP.RegisterAdmin(r)
			attHTTP.RegisterAdmin(r)
		})
	})

	out.router = r
	return out, nil
}
