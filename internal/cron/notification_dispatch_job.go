package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/dcastellon/staybook-backend/pkg/logger"
)

const dispatchBatchSize = 200

type notificationDispatcher interface {
	DispatchDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// NotificationDispatchJobParams configure the notification dispatch sweep.
type NotificationDispatchJobParams struct {
	Logger        *logger.Logger
	Notifications notificationDispatcher
}

// NewNotificationDispatchJob builds the cron job that turns due notification
// rows into outbox events.
func NewNotificationDispatchJob(params NotificationDispatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notification service required")
	}
	return &notificationDispatchJob{
		logg:          params.Logger,
		notifications: params.Notifications,
		now:           time.Now,
	}, nil
}

type notificationDispatchJob struct {
	logg          *logger.Logger
	notifications notificationDispatcher
	now           func() time.Time
}

func (j *notificationDispatchJob) Name() string { return "notification-dispatch" }

func (j *notificationDispatchJob) Run(ctx context.Context) error {
	dispatched, err := j.notifications.DispatchDue(ctx, j.now().UTC(), dispatchBatchSize)
	if dispatched > 0 {
		logCtx := j.logg.WithField(ctx, "dispatched", dispatched)
		j.logg.Info(logCtx, "dispatched due notifications")
	}
	if err != nil {
		return fmt.Errorf("dispatch notifications: %w", err)
	}
	return nil
}
