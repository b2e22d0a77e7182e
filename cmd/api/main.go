package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/finmsg/sms-gateway/internal/config"
	"github.com/finmsg/sms-gateway/internal/handler"
	"github.com/finmsg/sms-gateway/internal/infra/postgresql"
	"github.com/finmsg/sms-gateway/internal/infra/postgresql/migrations"
	infraredis "github.com/finmsg/sms-gateway/internal/infra/redis"
	"github.com/finmsg/sms-gateway/internal/observability"
	"github.com/finmsg/sms-gateway/internal/provider"
	"github.com/finmsg/sms-gateway/internal/queue"
	"github.com/finmsg/sms-gateway/internal/repository"
	"github.com/finmsg/sms-gateway/internal/service"
	"github.com/finmsg/sms-gateway/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "sms-gateway-api")
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

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
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

	publisher := queue.NewRabbitMQPublisher(rabbit)

	messages := repository.NewGormMessageRepo(db)
	bridges := repository.NewGormBridgeRepo(db)

	registry := provider.NewRegistry()
	if err := registry.Register("restgateway", provider.NewRESTGateway()); err != nil {
		logger.Fatal("provider registration failed", zap.Error(err))
	}
	if err := registry.Register("sandbox", provider.NewSandbox()); err != nil {
		logger.Fatal("provider registration failed", zap.Error(err))
	}

	dispatch, err := service.NewDispatchService(messages, bridges, publisher, logger)
	if err != nil {
		logger.Fatal("dispatch service init failed", zap.Error(err))
	}

	providerTimeout := time.Duration(cfg.ProviderTimeoutSec) * time.Second
	reconciliation, err := service.NewReconciliationService(messages, bridges, registry, providerTimeout, logger)
	if err != nil {
		logger.Fatal("reconciliation service init failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatch.SetMetrics(metrics)
	reconciliation.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})

	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(func(c *fiber.Ctx) error {
		if correlationID, ok := c.Locals("requestid").(string); ok && strings.TrimSpace(correlationID) != "" {
			c.SetUserContext(observability.WithCorrelationID(c.UserContext(), correlationID))
		}
		return c.Next()
	})
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb, rabbit)
	if err := handler.RegisterSMSRoutes(app, dispatch, reconciliation); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down api")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("sms-gateway api started", zap.Int("port", cfg.APIPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
