// Package main is the entry point for the Audit Receiver — the durable
// sink every WAL Engine in the mesh flushes its BEGIN/END entries to.
//
// Boot sequence mirrors audit-service/cmd/api/main.go: Vault secrets ->
// Postgres (pgxpool + otelpgx tracer) -> Echo routes -> serve -> graceful
// shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
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
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/appframework/applog"
	"github.com/arc-self/svcmesh/internal/appframework/config"
	"github.com/arc-self/svcmesh/internal/appframework/httptransport"
	"github.com/arc-self/svcmesh/internal/appframework/telemetry"
	"github.com/arc-self/svcmesh/internal/auditsvc"
	"github.com/arc-self/svcmesh/internal/contract"
)

func main() {
	logLevelRaw := os.Getenv("LOG_LEVEL")
	minLevel, err := applog.ParseLevel(logLevelRaw)
	if err != nil {
		zap.NewExample().Fatal("auditreceiver: invalid LOG_LEVEL", zap.Error(err))
	}
	logger, err := applog.New("auditreceiver", minLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	vaultAddr := envOr("VAULT_ADDR", "http://localhost:8200")
	vaultToken := envOr("VAULT_TOKEN", "root")
	secretPath := envOr("VAULT_SECRET_PATH", "secret/data/arc/auditreceiver")

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
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "auditreceiver", otelEndpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", otelEndpoint))
		}
		if mp, err := telemetry.InitMeterProvider(context.Background(), "auditreceiver", otelEndpoint); err != nil {
			logger.Error("failed to init OTel meter provider", zap.Error(err))
		} else {
			defer mp.Shutdown(context.Background())
		}
	}

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

	store := auditsvc.NewStore(pool)
	svc := auditsvc.New(store)

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("auditreceiver"))
	e.Use(middleware.Recover())
	e.Use(httptransport.EnforceHTTPS(env))
	auditsvc.RegisterRoutes(e, svc, logger.Raw())

	go func() {
		logger.Info("auditreceiver listening on :8080")
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
	logger.Info("auditreceiver shut down cleanly")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
