package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dcastellon/staybook-backend/internal/bookings"
	"github.com/dcastellon/staybook-backend/internal/cron"
	"github.com/dcastellon/staybook-backend/internal/idempotency"
	"github.com/dcastellon/staybook-backend/internal/notifications"
	"github.com/dcastellon/staybook-backend/pkg/config"
	"github.com/dcastellon/staybook-backend/pkg/db"
	"github.com/dcastellon/staybook-backend/pkg/logger"
	"github.com/dcastellon/staybook-backend/pkg/metrics"
	"github.com/dcastellon/staybook-backend/pkg/migrate"
	"github.com/dcastellon/staybook-backend/pkg/outbox"
	"github.com/dcastellon/staybook-backend/pkg/redis"
)

const lockKeyFormat = "cron-worker:%s"

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

	registry, err := buildJobGraph(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire cron jobs", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
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

func buildJobGraph(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	eventRegistry, err := outbox.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return nil, fmt.Errorf("event registry: %w", err)
	}
	outboxService, err := outbox.NewService(outbox.NewRepository(dbClient.DB()), eventRegistry, logg)
	if err != nil {
		return nil, fmt.Errorf("outbox service: %w", err)
	}

	idemService, err := idempotency.NewService(idempotency.ServiceParams{
		DB:     dbClient.DB(),
		Config: cfg.Idempotency,
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("idempotency service: %w", err)
	}

	notifService, err := notifications.NewService(notifications.ServiceParams{
		Tx:     dbClient,
		Repo:   notifications.NewRepository(dbClient.DB()),
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("notification service: %w", err)
	}

	bookingService, err := bookings.NewService(bookings.ServiceParams{
		Tx:            dbClient,
		Repo:          bookings.NewRepository(dbClient.DB()),
		Outbox:        outboxService,
		Gate:          idemService,
		Notifications: notifService,
		Config:        cfg.Booking,
		Logger:        logg,
	})
	if err != nil {
		return nil, fmt.Errorf("booking service: %w", err)
	}

	expiryJob, err := cron.NewBookingExpiryJob(cron.BookingExpiryJobParams{
		Logger:   logg,
		Bookings: bookingService,
	})
	if err != nil {
		return nil, fmt.Errorf("booking expiry job: %w", err)
	}

	dispatchJob, err := cron.NewNotificationDispatchJob(cron.NotificationDispatchJobParams{
		Logger:        logg,
		Notifications: notifService,
	})
	if err != nil {
		return nil, fmt.Errorf("notification dispatch job: %w", err)
	}

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	retentionJob, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger:        logg,
		DLQ:           dlqRepo,
		Idempotency:   idemService,
		Notifications: notifService,
		DLQRetention:  cfg.Outbox.DLQRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("retention job: %w", err)
	}

	return cron.NewRegistry(expiryJob, dispatchJob, retentionJob), nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
