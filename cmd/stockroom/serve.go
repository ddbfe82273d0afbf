package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockroom/stockroom/internal/app"
	"github.com/stockroom/stockroom/internal/dashboard"
	"github.com/stockroom/stockroom/internal/inventory"
	"github.com/stockroom/stockroom/internal/masterdata/products"
	"github.com/stockroom/stockroom/internal/masterdata/suppliers"
	"github.com/stockroom/stockroom/internal/observability"
	"github.com/stockroom/stockroom/internal/platform/cache"
	"github.com/stockroom/stockroom/internal/platform/db"
	"github.com/stockroom/stockroom/internal/procurement"
	"github.com/stockroom/stockroom/internal/sales/customers"
	"github.com/stockroom/stockroom/internal/sales/orders"
	"github.com/stockroom/stockroom/internal/shared"
	"github.com/stockroom/stockroom/jobs"
)

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.AutoMigrate {
		if err := db.Migrate(cfg.PGDSN); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	var dashboardCache *cache.JSONCache
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, dashboard cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		dashboardCache = cache.NewJSONCache(redisClient, "dashboard", cfg.DashboardCacheTTL)
	}
	var invalidator shared.CacheInvalidator
	if dashboardCache != nil {
		invalidator = dashboardCache
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	productService := products.NewService(products.NewRepository(dbpool), invalidator, logger)
	supplierService := suppliers.NewService(suppliers.NewRepository(dbpool))
	customerService := customers.NewService(customers.NewRepository(dbpool))
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool))

	orderService := orders.NewService(orders.NewRepository(dbpool), auditLogger, idempotencyStore, invalidator, logger)
	orderService.SetMetrics(metrics)
	purchaseService := procurement.NewService(procurement.NewRepository(dbpool), auditLogger, idempotencyStore, invalidator, logger)
	purchaseService.SetMetrics(metrics)

	dashboardService := dashboard.NewService(dashboard.NewRepository(dbpool), dashboardCache, cfg.LowStockThreshold, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ProductsHandler:    products.NewHandler(logger, productService),
		SuppliersHandler:   suppliers.NewHandler(logger, supplierService),
		CustomersHandler:   customers.NewHandler(customerService, logger),
		OrdersHandler:      orders.NewHandler(logger, orderService),
		ProcurementHandler: procurement.NewHandler(logger, purchaseService),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		DashboardHandler:   dashboard.NewHandler(logger, dashboardService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
