package main

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/storefront/api/handler"
	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/config"
	"github.com/fastygo/storefront/internal/infrastructure/buffer"
	"github.com/fastygo/storefront/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/storefront/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/storefront/internal/infrastructure/redis"
	"github.com/fastygo/storefront/internal/middleware"
	"github.com/fastygo/storefront/internal/referral"
	"github.com/fastygo/storefront/internal/router"
	"github.com/fastygo/storefront/internal/services"
	"github.com/fastygo/storefront/internal/services/lifecycle"
	"github.com/fastygo/storefront/pkg/httpcontext"
	"github.com/fastygo/storefront/pkg/logger"
	"github.com/fastygo/storefront/pkg/metrics"
	"github.com/fastygo/storefront/repository/postgres"
	redisRepo "github.com/fastygo/storefront/repository/redis"
	affiliateUC "github.com/fastygo/storefront/usecase/affiliate"
	attributionUC "github.com/fastygo/storefront/usecase/attribution"
	catalogUC "github.com/fastygo/storefront/usecase/catalog"
	ledgerUC "github.com/fastygo/storefront/usecase/ledger"
	orderUC "github.com/fastygo/storefront/usecase/order"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Service:  cfg.AppName,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, stop := manager.SignalContext(context.Background())
	defer stop()

	if err := pgInfra.RunMigrations(cfg.Database, cfg.Migrations, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(context.Context) error {
		return redisClient.Close()
	})

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "clicks")
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.Register("buffer", func(context.Context) error {
		return bufferStore.Close()
	})

	mon := monitor.New(
		pool,
		monitor.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		bufferStore,
		10*time.Second,
		zapLogger,
	)
	mon.Start(appCtx)
	manager.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry, cfg.AppName)

	markers := referral.NewCodec(
		cfg.Referral.Secret,
		cfg.Referral.CookieName,
		cfg.Referral.TTL,
		referral.WithSecureCookie(cfg.Referral.SecureCookie),
	)

	affiliateRepo := postgres.NewAffiliateRepository(pool)
	saleRepo := postgres.NewSaleRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	transactor := postgres.NewTransactor(pool, zapLogger)
	idempotencyRepo := redisRepo.NewIdempotencyRepository(redisClient, cfg.Checkout.IdempotencyPendingTTL, cfg.Checkout.IdempotencyTTL)

	// the processor replays through the attribution use case, which in turn
	// parks failed clicks in the processor's store
	var attribution *attributionUC.UseCase
	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		services.ClickRecorderFunc(func(ctx context.Context, click *domain.AffiliateClick) error {
			return attribution.RecordClick(ctx, click)
		}),
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	attribution = attributionUC.New(affiliateRepo, transactor, markers, services.NewBufferBridge(bufferProcessor), appMetrics, zapLogger)

	ledger := ledgerUC.New(affiliateRepo, saleRepo, transactor, appMetrics, zapLogger)
	affiliates := affiliateUC.New(affiliateRepo, saleRepo, nil, affiliateUC.Config{
		DefaultRate:  cfg.Affiliate.DefaultRate,
		CodeAttempts: cfg.Affiliate.CodeAttempts,
	}, zapLogger)
	orders := orderUC.New(productRepo, orderRepo, transactor, attribution, ledger, idempotencyRepo, appMetrics, zapLogger)
	catalog := catalogUC.New(productRepo, zapLogger)

	bufferProcessor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})

	reconciler := services.NewReconciler(ledger, cfg.Reconcile.Interval, zapLogger)
	if cfg.Reconcile.Enabled {
		reconciler.Start()
		manager.Register("reconciler", func(ctx context.Context) error {
			reconciler.Stop(ctx)
			return nil
		})
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Products:   apiHandler.NewProductHandler(catalog, attribution, markers, ctxAdapter, zapLogger),
		Orders:     apiHandler.NewOrderHandler(orders, markers, ctxAdapter, zapLogger),
		Affiliates: apiHandler.NewAffiliateHandler(affiliates, ctxAdapter, zapLogger),
		Admin:      apiHandler.NewAdminHandler(affiliates, ledger, reconciler, ctxAdapter, zapLogger),
		Health:     apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	if cfg.HTTP.EnableMetrics {
		handlers.Metrics = metrics.Handler(registry)
	}

	r := router.New(handlers, router.Middlewares{
		Auth:         middleware.JWTAuth(cfg.JWT.Secret, zapLogger),
		OptionalAuth: middleware.OptionalJWTAuth(cfg.JWT.Secret, zapLogger),
		Admin:        middleware.RequireRole(middleware.RoleAdmin),
	})

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Error("server stopped with error", zap.Error(err))
			stop()
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
