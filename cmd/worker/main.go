package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/finmsg/sms-gateway/internal/config"
	"github.com/finmsg/sms-gateway/internal/infra/postgresql"
	infraredis "github.com/finmsg/sms-gateway/internal/infra/redis"
	"github.com/finmsg/sms-gateway/internal/observability"
	"github.com/finmsg/sms-gateway/internal/provider"
	"github.com/finmsg/sms-gateway/internal/queue"
	"github.com/finmsg/sms-gateway/internal/repository"
	"github.com/finmsg/sms-gateway/internal/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "sms-gateway-worker")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()

	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)
	defer consumer.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter init failed", zap.Error(err))
	}

	registry := provider.NewRegistry()
	if err := registry.Register("restgateway", provider.NewRESTGateway()); err != nil {
		logger.Fatal("provider registration failed", zap.Error(err))
	}
	if err := registry.Register("sandbox", provider.NewSandbox()); err != nil {
		logger.Fatal("provider registration failed", zap.Error(err))
	}

	messages := repository.NewGormMessageRepo(db)
	bridges := repository.NewGormBridgeRepo(db)

	worker, err := service.NewSubmissionWorker(
		messages,
		bridges,
		registry,
		consumer,
		limiter,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("submission worker init failed", zap.Error(err))
	}
	worker.SetMetrics(observability.NewMetrics())

	logger.Info("sms-gateway worker started", zap.Int("concurrency", cfg.WorkerConcurrency))

	if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}

	logger.Info("sms-gateway worker stopped")
}
