// Package main is the entry point for the Gateway/Broker — the mesh's
// public edge, proxying /api/<slug>/v<major>/... to Mirror-resolved peers.
//
// Boot sequence, in the shape of every teacher app's main.go: LOG_LEVEL ->
// Vault secrets -> OpenTelemetry (when OTEL_EXPORTER_OTLP_ENDPOINT is set)
// -> Redis (rate limiter) -> WAL journal -> Mirror Store -> S2S resolver +
// client -> audit writer, wrapped by the NATS audit fan-out when NATS_URL is
// set -> WAL engine + replay -> MirrorNotifier subscriber (optional
// push-invalidation hint) -> Echo routes -> serve -> graceful shutdown on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/appframework/applog"
	"github.com/arc-self/svcmesh/internal/appframework/config"
	"github.com/arc-self/svcmesh/internal/appframework/httptransport"
	"github.com/arc-self/svcmesh/internal/appframework/telemetry"
	"github.com/arc-self/svcmesh/internal/auditwriter"
	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/gatewaysvc"
	"github.com/arc-self/svcmesh/internal/mirror"
	"github.com/arc-self/svcmesh/internal/mirrornotify"
	"github.com/arc-self/svcmesh/internal/natsclient"
	"github.com/arc-self/svcmesh/internal/natsfanout"
	"github.com/arc-self/svcmesh/internal/s2s"
	"github.com/arc-self/svcmesh/internal/wal"
	"github.com/arc-self/svcmesh/internal/wal/journal"
)

func main() {
	logLevelRaw := os.Getenv("LOG_LEVEL")
	minLevel, err := applog.ParseLevel(logLevelRaw)
	if err != nil {
		// No applog yet to report through — this is the one place a bare
		// stderr write is correct, mirroring a teacher logger.Fatal before
		// the logger itself exists.
		zap.NewExample().Fatal("gateway: invalid LOG_LEVEL", zap.Error(err))
	}
	logger, err := applog.New("gateway", minLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ── Vault Secret Loading ────────────────────────────────────────────
	vaultAddr := envOr("VAULT_ADDR", "http://localhost:8200")
	vaultToken := envOr("VAULT_TOKEN", "root")
	secretPath := envOr("VAULT_SECRET_PATH", "secret/data/arc/gateway")

	vaultManager, err := config.NewSecretManager(vaultAddr, vaultToken)
	if err != nil {
		logger.Error("vault connection failed", zap.Error(err))
		os.Exit(1)
	}
	secrets, err := vaultManager.GetKV2(secretPath)
	if err != nil {
		logger.Error("failed to load secrets from vault", zap.Error(err))
		os.Exit(1)
	}

	redisURL, err := config.String(secrets, "REDIS_URL")
	if err != nil {
		logger.Error("config error", zap.Error(err))
		os.Exit(1)
	}
	s2sSecret, err := config.String(secrets, "S2S_HS256_SECRET")
	if err != nil {
		logger.Error("config error", zap.Error(err))
		os.Exit(1)
	}
	facilitatorBase, err := config.String(secrets, "SVCFACILITATOR_BASE_URL")
	if err != nil {
		logger.Error("config error", zap.Error(err))
		os.Exit(1)
	}
	facilitatorSlug := config.StringOr(secrets, "SVCFACILITATOR_SLUG", "facilitator")
	facilitatorGrpcAddr := config.StringOr(secrets, "SVCFACILITATOR_GRPC_ADDR", "facilitator:50051")
	walDir := config.StringOr(secrets, "WAL_DIR", "/var/lib/gateway/wal")
	lkgPath := config.StringOr(secrets, "MIRROR_LKG_PATH", "/var/lib/gateway/mirror-lkg.json")
	env := config.StringOr(secrets, "ENVIRONMENT", contract.EnvDev)

	// ── OpenTelemetry ────────────────────────────────────────────────────
	if otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); otelEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "gateway", otelEndpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", otelEndpoint))
		}
		if mp, err := telemetry.InitMeterProvider(context.Background(), "gateway", otelEndpoint); err != nil {
			logger.Error("failed to init OTel meter provider", zap.Error(err))
		} else {
			defer mp.Shutdown(context.Background())
		}
	}

	// ── Redis (rate limiter) ────────────────────────────────────────────
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("failed to parse REDIS_URL", zap.Error(err))
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Error("redis connection failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("redis connected", zap.String("addr", redisOpts.Addr))
	rateLimiter := gatewaysvc.NewRateLimiter(redisClient, 200, time.Minute)

	// ── WAL: journal + engine, replay before accepting live traffic ─────
	jrn, err := journal.New(walDir, logger.Raw())
	if err != nil {
		logger.Error("journal init failed", zap.Error(err))
		os.Exit(1)
	}

	// ── Mirror Store, pulled from the facilitator over HTTP ─────────────
	resolverTTL := 30 * time.Second
	httpQuerier := gatewaysvc.NewFacilitatorMirrorQuerier(facilitatorBase, 5*time.Second)
	mirrorStore := mirror.New(httpQuerier, lkgPath, resolverTTL, logger.Raw())
	if _, err := mirrorStore.GetWithTTL(context.Background()); err != nil {
		logger.Error("mirror cold start failed", zap.Error(err))
		os.Exit(1)
	}

	resolver := s2s.NewResolver(mirrorStore, facilitatorSlug, facilitatorBase, resolverTTL)
	signer := s2s.NewHS256Signer(s2sSecret)
	s2sClient := s2s.NewClient(resolver, signer, "gateway", "internal", "gateway")

	auditReceiverVersion := 1
	auditWriter := auditwriter.New(s2sClient, "auditreceiver", auditReceiverVersion)

	// ── NATS audit fan-out (optional, supplemental) ─────────────────────
	// A push-based downstream stream layered on top of the mandatory HTTP
	// writer, never a replacement for it — an unset NATS_URL or a failed
	// connect degrades to the plain HTTP writer, not a boot failure.
	var walWriter wal.Writer = auditWriter
	var natsClient *natsclient.Client
	if natsURL := config.StringOr(secrets, "NATS_URL", ""); natsURL != "" {
		nc, err := natsclient.NewClient(natsURL, logger.Raw())
		if err != nil {
			logger.Warn("nats connect failed, audit fan-out disabled", zap.Error(err))
		} else if err := nc.ProvisionStreams(); err != nil {
			logger.Warn("nats stream provisioning failed, audit fan-out disabled", zap.Error(err))
			nc.Close()
		} else {
			natsClient = nc
			walWriter = natsfanout.NewDecorator(auditWriter, nc, logger.Raw())
			logger.Info("nats audit fan-out enabled", zap.String("stream", natsclient.StreamAuditEvents))
		}
	}

	realEngine := wal.New(jrn, walWriter, logger.Raw())
	if err := realEngine.Replay(context.Background()); err != nil {
		logger.Error("wal replay failed", zap.Error(err))
		os.Exit(1)
	}

	gw := gatewaysvc.New(mirrorStore, resolver, s2sClient, realEngine, rateLimiter, logger.Raw(), "gateway", facilitatorSlug)

	// ── MirrorNotifier subscriber (optional push-invalidation hint) ─────
	// Runs for the process lifetime; a permanently unreachable Facilitator
	// gRPC endpoint just means this Gateway leans entirely on its TTL-pull
	// resolve path, never a boot failure.
	notifyCtx, notifyCancel := context.WithCancel(context.Background())
	defer notifyCancel()
	subscriber := mirrornotify.NewSubscriber(facilitatorGrpcAddr, mirrorStore, logger.Raw())
	go subscriber.Run(notifyCtx)

	// ── HTTP Server ──────────────────────────────────────────────────────
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("gateway"))
	e.Use(middleware.Recover())
	e.Use(httptransport.EnforceHTTPS(env))
	gw.RegisterRoutes(e)

	go func() {
		logger.Info("gateway listening on :8080")
		if err := e.Start(":8080"); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failure", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown error", zap.Error(err))
	}
	if err := realEngine.Close(shutdownCtx); err != nil {
		logger.Error("wal close error", zap.Error(err))
	}
	notifyCancel()
	resolver.Close()
	mirrorStore.Close()
	if natsClient != nil {
		natsClient.Close()
	}
	logger.Info("gateway shut down cleanly")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
