package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelmondragon/tabletloan-backend/internal/cron"
	"github.com/angelmondragon/tabletloan-backend/internal/lending"
	"github.com/angelmondragon/tabletloan-backend/pkg/config"
	"github.com/angelmondragon/tabletloan-backend/pkg/db"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/metrics"
	"github.com/angelmondragon/tabletloan-backend/pkg/migrate"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox"
	"github.com/angelmondragon/tabletloan-backend/pkg/redis"
	"github.com/angelmondragon/tabletloan-backend/pkg/storage"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

const lockName = "sweeps"

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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	blobs, err := storage.Open(context.Background(), cfg.Storage, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open contract storage", err)
		os.Exit(1)
	}

	services, err := lending.New(lending.Params{
		DB:             dbClient,
		Blobs:          blobs,
		Logger:         logg,
		RetentionYears: cfg.Lending.RetentionYears,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to wire lending services", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewRetentionSweepJob(logg, services.Retention)
	if err != nil {
		logg.Error(context.Background(), "failed to create retention job", err)
		os.Exit(1)
	}
	repairJob, err := cron.NewStatusRepairJob(logg, services.Assignments)
	if err != nil {
		logg.Error(context.Background(), "failed to create status repair job", err)
		os.Exit(1)
	}
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Repository:       outbox.NewRepository(dbClient.DB()),
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.CronLockKey(lockName), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(repairJob, retentionJob, outboxJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
