package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sokohub-labs/sokohub-backend/internal/audit"
	"github.com/sokohub-labs/sokohub-backend/internal/cart"
	"github.com/sokohub-labs/sokohub-backend/internal/catalog"
	"github.com/sokohub-labs/sokohub-backend/internal/cron"
	"github.com/sokohub-labs/sokohub-backend/internal/deliveries"
	"github.com/sokohub-labs/sokohub-backend/internal/fraud"
	"github.com/sokohub-labs/sokohub-backend/internal/inventory"
	"github.com/sokohub-labs/sokohub-backend/internal/orders"
	"github.com/sokohub-labs/sokohub-backend/internal/payments"
	"github.com/sokohub-labs/sokohub-backend/internal/users"
	"github.com/sokohub-labs/sokohub-backend/pkg/config"
	"github.com/sokohub-labs/sokohub-backend/pkg/db"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
	"github.com/sokohub-labs/sokohub-backend/pkg/metrics"
	"github.com/sokohub-labs/sokohub-backend/pkg/migrate"
	"github.com/sokohub-labs/sokohub-backend/pkg/momo"
	"github.com/sokohub-labs/sokohub-backend/pkg/redis"
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

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	paymentsRepo := payments.NewRepository(gormDB)
	deliveriesRepo := deliveries.NewRepository(gormDB)

	auditor, err := audit.NewService(audit.NewRepository(gormDB), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, cart.NewRepository(gormDB), catalog.NewRepository(gormDB), inventory.NewLedger(), dbClient, auditor)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	deliveriesService, err := deliveries.NewService(deliveriesRepo, usersRepo, ordersService, dbClient, auditor, logg, cfg.Delivery)
	if err != nil {
		logg.Error(context.Background(), "failed to create deliveries service", err)
		os.Exit(1)
	}

	fraudService, err := fraud.NewService(fraud.NewScorer(cfg.Fraud), fraud.NewRepository(gormDB), usersRepo, dbClient, auditor)
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

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	paymentCleanup, err := cron.NewPaymentCleanupJob(logg, paymentsService, cfg.Payments.PendingTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment cleanup job", err)
		os.Exit(1)
	}
	autoMatch, err := cron.NewAutoMatchJob(logg, deliveriesService)
	if err != nil {
		logg.Error(context.Background(), "failed to create auto match job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	registry.Register(paymentCleanup)
	registry.Register(autoMatch)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
