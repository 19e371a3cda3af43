package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/internal/config"
	"checkout-service/internal/controllers/http"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/mongo"
	mmysql "checkout-service/internal/infra/mysql"
	"checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/infra/redislock"
	"checkout-service/internal/logging"
	mysqlrepo "checkout-service/internal/repository/mysql"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("CHECKOUT_CONFIG"), "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := mmysql.NewMySQL(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("db: connect: %w", err)
	}

	orders := mysqlrepo.NewOrderRepository(db, logger)
	correlations := mysqlrepo.NewCorrelationRepository(db)
	credentials := services.NewCredentialResolver(mysqlrepo.NewCredentialRepository(db))

	locker, closeLocker, err := newLocker(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	var publisher rabbitmq.PublisherInterface = rabbitmq.NoopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			return fmt.Errorf("failed to init publisher: %w", err)
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Info("rabbitmq not configured, events are dropped")
	}

	var auditor mongo.Auditor = mongo.NoopAuditor{}
	if cfg.MongoDB.URI != "" {
		a, err := mongo.NewAuditRepository(cfg.MongoDB)
		if err != nil {
			return fmt.Errorf("failed to init audit store: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.Close(ctx)
		}()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = a.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("mongodb: ping: %w", err)
		}
		auditor = a
	} else {
		logger.Info("mongodb not configured, notification audit disabled")
	}

	productClient := infra.NewProductClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout)
	gatewayClient := infra.NewGatewayClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout)

	orderService := services.NewOrderService(services.OrderServiceDeps{
		Orders:       orders,
		Correlations: correlations,
		Products:     productClient,
		Gateway:      gatewayClient,
		Credentials:  credentials,
		Locker:       locker,
		Publisher:    publisher,
		Logger:       logger,
	}, services.CheckoutOptions{
		PublicURL:          cfg.Server.PublicURL,
		StorefrontURL:      cfg.Gateway.StorefrontURL,
		Currency:           cfg.Gateway.Currency,
		CatalogConcurrency: cfg.Catalog.Concurrency,
	})

	reconciler := services.NewReconciler(services.ReconcilerDeps{
		Orders:       orders,
		Correlations: correlations,
		Gateway:      gatewayClient,
		Credentials:  credentials,
		Locker:       locker,
		Publisher:    publisher,
		Auditor:      auditor,
		Logger:       logger,
	}, services.ReconcileOptions{
		FetchAttempts:  cfg.Reconcile.FetchAttempts,
		InitialBackoff: cfg.Reconcile.InitialBackoff,
		MaxBackoff:     cfg.Reconcile.MaxBackoff,
	})

	handler := http.NewHandler(orderService, reconciler, auditor, http.HeaderTenantResolver{}, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(http.LoggerMiddleware(logger))

	handler.RegisterRoutes(r)

	srv := &nethttp.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting checkout service", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server run: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// newLocker uses Redis when an address is configured so that every replica
// shares the per-order locks.
func newLocker(cfg *config.Config, logger *zap.Logger) (redislock.Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		logger.Warn("redis not configured, order locks are process-local")
		return redislock.NewMemoryLocker(), func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("redis: ping %s: %w", cfg.Redis.Addr, err)
	}

	locker := redislock.NewRedisLocker(redisClient, cfg.Reconcile.LockTTL, cfg.Reconcile.LockWait)
	return locker, func() { _ = redisClient.Close() }, nil
}
