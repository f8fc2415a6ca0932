package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/sokohub-labs/sokohub-backend/api/routes"
	"github.com/sokohub-labs/sokohub-backend/internal/audit"
	"github.com/sokohub-labs/sokohub-backend/internal/cart"
	"github.com/sokohub-labs/sokohub-backend/internal/catalog"
	"github.com/sokohub-labs/sokohub-backend/internal/deliveries"
	"github.com/sokohub-labs/sokohub-backend/internal/fraud"
	"github.com/sokohub-labs/sokohub-backend/internal/inventory"
	"github.com/sokohub-labs/sokohub-backend/internal/orders"
	"github.com/sokohub-labs/sokohub-backend/internal/payments"
	"github.com/sokohub-labs/sokohub-backend/internal/users"
	"github.com/sokohub-labs/sokohub-backend/pkg/config"
	"github.com/sokohub-labs/sokohub-backend/pkg/db"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
	"github.com/sokohub-labs/sokohub-backend/pkg/migrate"
	"github.com/sokohub-labs/sokohub-backend/pkg/momo"
	"github.com/sokohub-labs/sokohub-backend/pkg/redis"
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

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	paymentsRepo := payments.NewRepository(gormDB)
	deliveriesRepo := deliveries.NewRepository(gormDB)
	fraudRepo := fraud.NewRepository(gormDB)

	auditor, err := audit.NewService(audit.NewRepository(gormDB), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, catalogRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, cartRepo, catalogRepo, inventory.NewLedger(), dbClient, auditor)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	deliveriesService, err := deliveries.NewService(deliveriesRepo, usersRepo, ordersService, dbClient, auditor, logg, cfg.Delivery)
	if err != nil {
		logg.Error(context.Background(), "failed to create deliveries service", err)
		os.Exit(1)
	}

	fraudService, err := fraud.NewService(fraud.NewScorer(cfg.Fraud), fraudRepo, usersRepo, dbClient, auditor)
	if err != nil {
		logg.Error(context.Background(), "failed to create fraud service", err)
		os.Exit(1)
	}

	momoClient, err := momo.NewClient(cfg.Momo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create momo client", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(
		paymentsRepo,
		ordersRepo,
		usersRepo,
		momoClient,
		fraudService,
		deliveriesService,
		redisClient,
		dbClient,
		auditor,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
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
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			cartService,
			ordersService,
			paymentsService,
			deliveriesService,
			fraudService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
