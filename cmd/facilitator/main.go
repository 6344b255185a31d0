// Package main is the entry point for the Facilitator Service — the sole
// owner of the Mirror's lifecycle, backed directly by Postgres.
//
// Boot sequence mirrors discovery-service/cmd/api/main.go: Vault secrets ->
// Postgres (pgxpool + otelpgx tracer) -> Mirror Store (DB-backed Querier,
// cold-start-fail if neither DB nor LKG seed it) -> Echo routes -> serve ->
// graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/arc-self/svcmesh/internal/appframework/applog"
	"github.com/arc-self/svcmesh/internal/appframework/config"
	"github.com/arc-self/svcmesh/internal/appframework/httptransport"
	"github.com/arc-self/svcmesh/internal/appframework/telemetry"
	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/facilitatorsvc"
	facilitatordb "github.com/arc-self/svcmesh/internal/facilitatorsvc/db"
	"github.com/arc-self/svcmesh/internal/mirror"
	"github.com/arc-self/svcmesh/internal/mirrornotify"
	"github.com/arc-self/svcmesh/internal/mirrornotify/proto"
)

func main() {
	logLevelRaw := os.Getenv("LOG_LEVEL")
	minLevel, err := applog.ParseLevel(logLevelRaw)
	if err != nil {
		zap.NewExample().Fatal("facilitator: invalid LOG_LEVEL", zap.Error(err))
	}
	logger, err := applog.New("facilitator", minLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ── Vault Secret Loading ────────────────────────────────────────────
	vaultAddr := envOr("VAULT_ADDR", "http://localhost:8200")
	vaultToken := envOr("VAULT_TOKEN", "root")
	secretPath := envOr("VAULT_SECRET_PATH", "secret/data/arc/facilitator")

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

	pgURL, err := config.String(secrets, "PG_URL")
	if err != nil {
		logger.Error("config error", zap.Error(err))
		os.Exit(1)
	}
	env := config.StringOr(secrets, "ENVIRONMENT", contract.EnvDev)
	lkgPath := config.StringOr(secrets, "MIRROR_LKG_PATH", "/var/lib/facilitator/mirror-lkg.json")

	// ── OpenTelemetry ────────────────────────────────────────────────────
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "facilitator", otelEndpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", otelEndpoint))
		}
		if mp, err := telemetry.InitMeterProvider(context.Background(), "facilitator", otelEndpoint); err != nil {
			logger.Error("failed to init OTel meter provider", zap.Error(err))
		} else {
			defer mp.Shutdown(context.Background())
		}
	}

	// ── Database ─────────────────────────────────────────────────────────
	poolCfg, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		logger.Error("failed to parse PG_URL", zap.Error(err))
		os.Exit(1)
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()
	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database (OTel-instrumented)", zap.String("otelEndpoint", otelEndpoint))

	// ── Mirror Store, backed directly by Postgres ───────────────────────
	querier := facilitatordb.New(pool)
	mirrorStore := mirror.New(querier, lkgPath, 30*time.Second, logger.Raw())
	if _, err := mirrorStore.GetWithTTL(context.Background()); err != nil {
		logger.Error("mirror cold start failed", zap.Error(err))
		os.Exit(1)
	}

	svc := facilitatorsvc.New(mirrorStore, querier, env, logger.Raw())

	// ── gRPC MirrorNotifier (optional push-invalidation hint) ────────────
	notifyServer := mirrornotify.NewServer(logger.Raw())
	svc.SetNotifier(notifyServer)

	grpcLis, err := net.Listen("tcp", ":50051")
	if err != nil {
		logger.Error("failed to listen on gRPC port", zap.Error(err))
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	proto.RegisterMirrorNotifierServer(grpcServer, notifyServer)
	go func() {
		logger.Info("facilitator gRPC (MirrorNotifier) listening on :50051")
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("grpc server failure", zap.Error(err))
		}
	}()

	// ── HTTP Server ──────────────────────────────────────────────────────
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("facilitator"))
	e.Use(middleware.Recover())
	e.Use(httptransport.EnforceHTTPS(env))
	facilitatorsvc.RegisterRoutes(e, svc, logger.Raw())

	go func() {
		logger.Info("facilitator listening on :8080")
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
	grpcServer.GracefulStop()
	mirrorStore.Close()
	logger.Info("facilitator shut down cleanly")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
