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

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/identity"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const paymentConsumerGroup = "storefront-payments"

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	logger.Info("Database ready", zap.String("driver", cfg.Database.Driver))

	checks := map[string]api.Pinger{"database": db}

	// Checkout still works without Redis, just without the cart lock and
	// the idempotency cache.
	var guard service.CheckoutGuard
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, checkout runs unguarded", zap.Error(err))
	} else {
		defer redisClient.Close()
		guard = redisClient
		checks["redis"] = redisClient
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	eventPublisher := broker.NewEventPublisher(producer)

	pricing := service.Pricing{TaxRate: cfg.Business.TaxRate, ShippingFee: cfg.Business.ShippingFee}
	orderService := service.NewOrderService(db, guard, eventPublisher, pricing, service.CheckoutOptions{
		LockTTL:        cfg.Business.CheckoutLockTTL,
		IdempotencyTTL: cfg.Business.IdempotencyTTL,
	})
	cartService := service.NewCartService(db)
	catalogService := service.NewCatalogService(db)
	donationService := service.NewDonationService(db)
	paymentService := service.NewPaymentService(db, eventPublisher, cfg.Business.PaymentSuccessRate)
	reconciler := service.NewPaymentReconciler(db)

	auth, err := identity.New(cfg.Auth, db)
	if err != nil {
		logger.Fatal("Failed to configure identity provider", zap.Error(err))
	}
	logger.Info("Identity provider configured", zap.String("provider", auth.Name()))

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	orderConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	orderWorker := worker.NewOrderWorker(orderConsumer, reconciler)
	go func() {
		if err := orderWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Order worker stopped", zap.Error(err))
		}
	}()

	paymentConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, paymentConsumerGroup)
	paymentWorker := worker.NewPaymentWorker(paymentConsumer, paymentService)
	go func() {
		if err := paymentWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Payment worker stopped", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, cartService, catalogService, donationService, auth, checks)
	if redisClient != nil {
		handler.SetStateStore(redisClient)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
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
	if err := orderWorker.Stop(); err != nil {
		logger.Warn("Order worker close failed", zap.Error(err))
	}
	if err := paymentWorker.Stop(); err != nil {
		logger.Warn("Payment worker close failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
