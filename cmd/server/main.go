package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales-service/config"
	"sales-service/internal/api"
	"sales-service/internal/broker"
	"sales-service/internal/redisclient"
	"sales-service/internal/service"
	"sales-service/internal/store"
	"sales-service/internal/util"
	"sales-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting sales service")

	tp, err := util.InitTracer("sales-service", cfg.Server.Env, cfg.Observ.JaegerEndpoint, cfg.Observ.TraceSampleRatio)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Database migrations applied")
	}

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetLockTimeout(cfg.Checkout.LockTimeout)
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSale)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer)

	stockService := service.NewStockService(db, redisClient, cfg.Redis.StockCacheTTL, cfg.Checkout.LowStockThreshold)
	checkoutService := service.NewCheckoutService(db, redisClient, service.CheckoutOptions{
		AttemptTimeout: cfg.Checkout.AttemptTimeout,
		MaxAttempts:    cfg.Checkout.MaxAttempts,
		IdempotencyTTL: cfg.Checkout.IdempotencyTTL,
		Topic:          cfg.Kafka.TopicSale,
	})
	paymentService := service.NewPaymentService(db, cfg.Kafka.TopicSale)
	catalogService := service.NewCatalogService(db)
	customerService := service.NewCustomerService(db)
	reportService := service.NewReportService(db)
	stockWatcher := service.NewStockWatcher(db, stockService, eventPublisher)

	ctx := context.Background()
	if err := stockService.SyncStockToRedis(ctx); err != nil {
		logger.Warn("Failed to sync stock to Redis", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	relay := worker.NewOutboxRelay(db, producer, redisClient, cfg.Checkout.OutboxPollInterval, cfg.Checkout.OutboxBatchSize)
	go func() {
		if err := relay.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Outbox relay error", zap.Error(err))
		}
	}()

	stockConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSale, cfg.Kafka.ConsumerGroup)
	stockWorker := worker.NewStockWorker(stockConsumer, stockWatcher)
	go func() {
		if err := stockWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Stock worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Checkout:  checkoutService,
		Payments:  paymentService,
		Stock:     stockService,
		Catalog:   catalogService,
		Customers: customerService,
		Reports:   reportService,
		Ready: map[string]api.Pinger{
			"postgres": db,
			"redis":    redisClient,
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	relay.Stop()
	stockWorker.Stop()

	logger.Info("Server exited")
}
