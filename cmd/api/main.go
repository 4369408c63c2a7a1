// cmd/api/main.go
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/sportsfesthq/sportsfest-backend/api/routes"
	cartsvc "github.com/sportsfesthq/sportsfest-backend/internal/cart"
	"github.com/sportsfesthq/sportsfest-backend/internal/inventory"
	invoicesvc "github.com/sportsfesthq/sportsfest-backend/internal/invoices"
	ordersvc "github.com/sportsfesthq/sportsfest-backend/internal/orders"
	"github.com/sportsfesthq/sportsfest-backend/pkg/config"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
	"github.com/sportsfesthq/sportsfest-backend/pkg/mailer"
	"github.com/sportsfesthq/sportsfest-backend/pkg/migrate"
	"github.com/sportsfesthq/sportsfest-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	invoiceRepo := invoicesvc.NewRepository(dbClient.DB())

	inventoryService, err := inventory.NewService(inventoryRepo, inventoryRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}
	cartService, err := cartsvc.NewService(cartRepo, inventoryRepo, dbClient, cfg.Cart, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	orderService, err := ordersvc.NewService(orderRepo, cartRepo, inventoryRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	sender, err := mailer.FromConfig(cfg.Mailer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail sender", err)
		os.Exit(1)
	}
	invoiceService, err := invoicesvc.NewService(invoiceRepo, orderRepo, orderService, dbClient, sender, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoices service", err)
		os.Exit(1)
	}
	cleanupService, err := ordersvc.NewCleanupService(orderRepo, cartRepo, inventoryRepo, dbClient, cfg.Cleanup, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cleanup service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, inventoryService, cartService, orderService, invoiceService, cleanupService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
