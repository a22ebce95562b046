package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/dcastellon/staybook-backend/pkg/logger"
)

type holdExpirer interface {
	ExpireDueHolds(ctx context.Context, now time.Time) (int, error)
}

// BookingExpiryJobParams configure the hold expiry sweep.
type BookingExpiryJobParams struct {
	Logger   *logger.Logger
	Bookings holdExpirer
}

// NewBookingExpiryJob builds the cron job that cancels lapsed holds and
// returns their inventory.
func NewBookingExpiryJob(params BookingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking service required")
	}
	return &bookingExpiryJob{
		logg:     params.Logger,
		bookings: params.Bookings,
		now:      time.Now,
	}, nil
}

type bookingExpiryJob struct {
	logg     *logger.Logger
	bookings holdExpirer
	now      func() time.Time
}

func (j *bookingExpiryJob) Name() string { return "booking-expiry" }

func (j *bookingExpiryJob) Run(ctx context.Context) error {
	expired, err := j.bookings.ExpireDueHolds(ctx, j.now().UTC())
	if expired > 0 {
		logCtx := j.logg.WithField(ctx, "expired", expired)
		j.logg.Info(logCtx, "expired lapsed holds")
	}
	if err != nil {
		return fmt.Errorf("expire holds: %w", err)
	}
	return nil
}
