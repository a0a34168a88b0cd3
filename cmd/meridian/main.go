package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/metadata"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/posting"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/telemetry"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, pack cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metadataRepo := metadata.NewRepository(dbpool)
	postingRepo := posting.NewRepository(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	usageQueue := telemetry.NewQueueRecorder(asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}))
	defer func() {
		if err := usageQueue.Close(); err != nil {
			logger.Warn("usage queue close", slog.Any("error", err))
		}
	}()

	metadataService := metadata.NewService(metadataRepo, usageQueue, logger)
	tierValidator := metadata.NewValidator(metadataRepo)
	packCache := metadata.NewPackCache(redisClient, cfg.PackCacheTTL)
	metadataHandler := metadata.NewHandler(logger, metadataService, tierValidator, packCache)

	guard := posting.NewGuard(metadataRepo, postingRepo)
	executor := posting.NewExecutor(guard, postingRepo)
	postingHandler := posting.NewHandler(logger, guard, executor, postingRepo, metadataRepo, idempotencyStore, metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		MetadataHandler: metadataHandler,
		PostingHandler:  postingHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
