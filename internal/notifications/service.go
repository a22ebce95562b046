package notifications

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/pkg/db/models"
	"github.com/dcastellon/staybook-backend/pkg/enums"
	"github.com/dcastellon/staybook-backend/pkg/logger"
	"github.com/dcastellon/staybook-backend/pkg/outbox"
	"github.com/dcastellon/staybook-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service queues notifications and turns due rows into outbox events for the
// delivery consumers.
type Service struct {
	tx     txRunner
	repo   Repository
	outbox outboxEmitter
	logg   *logger.Logger
}

// ServiceParams wires the notification service dependencies.
type ServiceParams struct {
	Tx     txRunner
	Repo   Repository
	Outbox outboxEmitter
	Logger *logger.Logger
}

// NewService validates dependencies and returns the notification service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("notifications: tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications: repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("notifications: outbox emitter required")
	}
	return &Service{tx: params.Tx, repo: params.Repo, outbox: params.Outbox, logg: params.Logger}, nil
}

// Queue inserts a notification row inside the caller's transaction so it
// commits with the transition that caused it.
func (s *Service) Queue(ctx context.Context, tx *gorm.DB, notification *models.Notification) error {
	return s.repo.WithTx(tx).Create(ctx, notification)
}

// DispatchDue converts due notifications into notification_requested outbox
// events, one transaction per row. The conditional dispatched_at stamp keeps
// concurrent sweepers from double-sending.
func (s *Service) DispatchDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.repo.FindDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	var errs error
	for _, notification := range due {
		notification := notification
		txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			marked, err := s.repo.WithTx(tx).MarkDispatched(ctx, notification.ID, now)
			if err != nil {
				return err
			}
			if !marked {
				return nil
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:  enums.EventNotificationRequested,
				Key:        notification.UserID.String(),
				OccurredAt: now,
				Data: payloads.NotificationRequestedEvent{
					NotificationID: notification.ID,
					UserID:         notification.UserID,
					BookingID:      notification.BookingID,
					Kind:           notification.Kind,
				},
			}); err != nil {
				return err
			}
			dispatched++
			return nil
		})
		if txErr != nil {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "notification_id", notification.ID.String())
				s.logg.Error(logCtx, "dispatch notification", txErr)
			}
			errs = multierr.Append(errs, fmt.Errorf("notification %s: %w", notification.ID, txErr))
		}
	}
	return dispatched, errs
}

// PruneDispatched removes dispatched rows older than the cutoff.
func (s *Service) PruneDispatched(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteDispatchedBefore(ctx, cutoff)
}
