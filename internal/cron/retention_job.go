package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/dcastellon/staybook-backend/pkg/logger"
)

type dlqPruner interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

type idempotencyPruner interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationPruner interface {
	PruneDispatched(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJobParams configure the retention sweep.
type RetentionJobParams struct {
	Logger                *logger.Logger
	DLQ                   dlqPruner
	Idempotency           idempotencyPruner
	Notifications         notificationPruner
	DLQRetention          time.Duration
	NotificationRetention time.Duration
}

const defaultRetention = 30 * 24 * time.Hour

// NewRetentionJob builds the cron job that compacts dead-letter rows, expired
// idempotency records, and dispatched notifications.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DLQ == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency service required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notification service required")
	}
	if params.DLQRetention <= 0 {
		params.DLQRetention = defaultRetention
	}
	if params.NotificationRetention <= 0 {
		params.NotificationRetention = defaultRetention
	}
	return &retentionJob{
		logg:                  params.Logger,
		dlq:                   params.DLQ,
		idempotency:           params.Idempotency,
		notifications:         params.Notifications,
		dlqRetention:          params.DLQRetention,
		notificationRetention: params.NotificationRetention,
		now:                   time.Now,
	}, nil
}

type retentionJob struct {
	logg                  *logger.Logger
	dlq                   dlqPruner
	idempotency           idempotencyPruner
	notifications         notificationPruner
	dlqRetention          time.Duration
	notificationRetention time.Duration
	now                   func() time.Time
}

func (j *retentionJob) Name() string { return "retention" }

func (j *retentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error

	dlqPruned, err := j.dlq.DeleteOlderThan(now.Add(-j.dlqRetention))
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("prune dlq: %w", err))
	}
	recordsPruned, err := j.idempotency.DeleteExpired(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("prune idempotency records: %w", err))
	}
	notificationsPruned, err := j.notifications.PruneDispatched(ctx, now.Add(-j.notificationRetention))
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("prune notifications: %w", err))
	}

	if dlqPruned+recordsPruned+notificationsPruned > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"dlq":           dlqPruned,
			"idempotency":   recordsPruned,
			"notifications": notificationsPruned,
		})
		j.logg.Info(logCtx, "retention sweep pruned rows")
	}
	return errs
}
