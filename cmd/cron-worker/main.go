// cmd/cron-worker/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	cartsvc "github.com/sportsfesthq/sportsfest-backend/internal/cart"
	"github.com/sportsfesthq/sportsfest-backend/internal/cron"
	"github.com/sportsfesthq/sportsfest-backend/internal/inventory"
	ordersvc "github.com/sportsfesthq/sportsfest-backend/internal/orders"
	"github.com/sportsfesthq/sportsfest-backend/pkg/config"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
	"github.com/sportsfesthq/sportsfest-backend/pkg/metrics"
	"github.com/sportsfesthq/sportsfest-backend/pkg/migrate"
	"github.com/sportsfesthq/sportsfest-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	cartRepo := cartsvc.NewRepository(dbClient.DB())
	orderRepo := ordersvc.NewRepository(dbClient.DB())

	cleanupService, err := ordersvc.NewCleanupService(orderRepo, cartRepo, inventoryRepo, dbClient, cfg.Cleanup, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cleanup service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	cartExpiryJob, err := cron.NewCartExpiryJob(cron.CartExpiryJobParams{
		Logger:    logg,
		DB:        dbClient,
		Carts:     cartRepo,
		Inventory: inventoryRepo,
		Metrics:   metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart expiry job", err)
		os.Exit(1)
	}
	abandonedOrderJob, err := cron.NewAbandonedOrderJob(cron.AbandonedOrderJobParams{
		Logger:  logg,
		Cleanup: cleanupService,
		Metrics: metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create abandoned order job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(cartExpiryJob, abandonedOrderJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
