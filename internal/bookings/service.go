package bookings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/internal/availability"
	"github.com/dcastellon/staybook-backend/internal/idempotency"
	"github.com/dcastellon/staybook-backend/pkg/config"
	"github.com/dcastellon/staybook-backend/pkg/db/models"
	"github.com/dcastellon/staybook-backend/pkg/enums"
	pkgerrors "github.com/dcastellon/staybook-backend/pkg/errors"
	"github.com/dcastellon/staybook-backend/pkg/logger"
	"github.com/dcastellon/staybook-backend/pkg/outbox"
	"github.com/dcastellon/staybook-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type availabilityEngine interface {
	Quote(ctx context.Context, db *gorm.DB, propertyID uuid.UUID, checkIn, checkOut time.Time) (availability.StayQuote, error)
	Reserve(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID, checkIn, checkOut time.Time) error
	Release(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID, checkIn, checkOut time.Time) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type idempotencyGate interface {
	BeginOrReuse(ctx context.Context, scope idempotency.Scope, payloadHash string) (idempotency.Decision, error)
	CompleteOK(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, response json.RawMessage, resourceID *uuid.UUID) error
	CompleteFailed(ctx context.Context, recordID uuid.UUID, cause error) error
}

type notificationQueue interface {
	Queue(ctx context.Context, tx *gorm.DB, notification *models.Notification) error
}

type reservationEngine struct{}

func (reservationEngine) Quote(ctx context.Context, db *gorm.DB, propertyID uuid.UUID, checkIn, checkOut time.Time) (availability.StayQuote, error) {
	return availability.Quote(ctx, db, propertyID, checkIn, checkOut)
}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID, checkIn, checkOut time.Time) error {
	return availability.Reserve(ctx, tx, propertyID, checkIn, checkOut)
}

func (reservationEngine) Release(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID, checkIn, checkOut time.Time) error {
	return availability.Release(ctx, tx, propertyID, checkIn, checkOut)
}

// Service is the booking lifecycle engine. Every transition with external
// significance writes the row mutation and its outbox event in one transaction.
type Service struct {
	tx            txRunner
	repo          Repository
	availability  availabilityEngine
	outbox        outboxEmitter
	gate          idempotencyGate
	notifications notificationQueue
	cfg           config.BookingConfig
	logg          *logger.Logger
	now           func() time.Time
}

// ServiceParams wires the lifecycle engine dependencies.
type ServiceParams struct {
	Tx            txRunner
	Repo          Repository
	Availability  availabilityEngine
	Outbox        outboxEmitter
	Gate          idempotencyGate
	Notifications notificationQueue
	Config        config.BookingConfig
	Logger        *logger.Logger
	Now           func() time.Time
}

// NewService validates dependencies and returns the lifecycle engine.
func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("bookings: tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("bookings: repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("bookings: outbox emitter required")
	}
	if params.Gate == nil {
		return nil, fmt.Errorf("bookings: idempotency gate required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("bookings: notification queue required")
	}
	if params.Availability == nil {
		params.Availability = reservationEngine{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		tx:            params.Tx,
		repo:          params.Repo,
		availability:  params.Availability,
		outbox:        params.Outbox,
		gate:          params.Gate,
		notifications: params.Notifications,
		cfg:           params.Config,
		logg:          params.Logger,
		now:           now,
	}, nil
}

// CreateHoldInput carries everything a hold request needs. RiskFlagged holds
// land in review with the longer review window instead of going straight to
// the customer-facing hold window.
type CreateHoldInput struct {
	CustomerID     uuid.UUID
	PropertyID     uuid.UUID
	CheckIn        time.Time
	CheckOut       time.Time
	RiskFlagged    bool
	IdempotencyKey string
}

// CreateHold reserves inventory for the stay and creates the booking in hold
// (or review) state. The idempotency gate makes client retries return the
// first outcome instead of double-booking.
func (s *Service) CreateHold(ctx context.Context, input CreateHoldInput) (*models.Booking, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.PropertyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "property id required")
	}
	if _, err := availability.Nights(input.CheckIn, input.CheckOut); err != nil {
		return nil, err
	}

	hash, err := hashHoldInput(input)
	if err != nil {
		return nil, err
	}
	decision, err := s.gate.BeginOrReuse(ctx, idempotency.Scope{
		UserID:   input.CustomerID,
		Endpoint: "POST /v1/bookings",
		Key:      input.IdempotencyKey,
	}, hash)
	if err != nil {
		return nil, err
	}
	if decision.Outcome == idempotency.OutcomeReplay {
		return s.replayedBooking(ctx, decision)
	}

	now := s.now().UTC()
	status := enums.BookingStatusHold
	window := s.cfg.HoldWindow
	if input.RiskFlagged {
		status = enums.BookingStatusReview
		window = s.cfg.ReviewHoldWindow
	}
	expiresAt := now.Add(window)

	var booking *models.Booking
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).FindProperty(ctx, input.PropertyID); err != nil {
			return err
		}
		quote, err := s.availability.Quote(ctx, tx, input.PropertyID, input.CheckIn, input.CheckOut)
		if err != nil {
			return err
		}
		if err := s.availability.Reserve(ctx, tx, input.PropertyID, input.CheckIn, input.CheckOut); err != nil {
			return err
		}

		record := models.Booking{
			ID:            uuid.New(),
			PropertyID:    input.PropertyID,
			CustomerID:    input.CustomerID,
			CheckIn:       availability.NormalizeDate(input.CheckIn),
			CheckOut:      availability.NormalizeDate(input.CheckOut),
			Status:        status,
			HoldExpiresAt: &expiresAt,
			TotalPrice:    quote.TotalPrice,
		}
		if err := s.repo.WithTx(tx).Create(ctx, &record); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		eventType := enums.EventBookingHeld
		if input.RiskFlagged {
			eventType = enums.EventBookingReview
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:  eventType,
			Key:        record.ID.String(),
			Actor:      &outbox.ActorRef{UserID: input.CustomerID, Role: "customer"},
			OccurredAt: now,
			Data: payloads.BookingHeldEvent{
				BookingID:     record.ID,
				PropertyID:    record.PropertyID,
				CustomerID:    record.CustomerID,
				CheckIn:       record.CheckIn,
				CheckOut:      record.CheckOut,
				Status:        record.Status,
				TotalPrice:    record.TotalPrice,
				HoldExpiresAt: expiresAt,
			},
		}); err != nil {
			return err
		}

		if err := s.notifications.Queue(ctx, tx, &models.Notification{
			ID:        uuid.New(),
			UserID:    record.CustomerID,
			BookingID: &record.ID,
			Kind:      enums.NotificationBookingHeld,
			DueAt:     now,
		}); err != nil {
			return err
		}

		response, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := s.gate.CompleteOK(ctx, tx, decision.RecordID, response, &record.ID); err != nil {
			return err
		}
		booking = &record
		return nil
	})
	if txErr != nil {
		if failErr := s.gate.CompleteFailed(ctx, decision.RecordID, txErr); failErr != nil && s.logg != nil {
			s.logg.Error(ctx, "mark idempotency record failed", failErr)
		}
		return nil, txErr
	}
	return booking, nil
}

// replayedBooking serves the response frozen when the first attempt completed.
// Retries see that result verbatim even if the booking has since transitioned,
// e.g. an expiry sweep cancelling the hold between the two calls.
func (s *Service) replayedBooking(ctx context.Context, decision idempotency.Decision) (*models.Booking, error) {
	if len(decision.Response) > 0 {
		var snapshot models.Booking
		if err := json.Unmarshal(decision.Response, &snapshot); err != nil {
			return nil, fmt.Errorf("decode stored response: %w", err)
		}
		return &snapshot, nil
	}
	if decision.ResourceID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "replay record has no booking reference")
	}
	return s.repo.FindByID(ctx, *decision.ResourceID)
}

func hashHoldInput(input CreateHoldInput) (string, error) {
	canonical, err := json.Marshal(map[string]any{
		"propertyId": input.PropertyID,
		"checkIn":    availability.NormalizeDate(input.CheckIn),
		"checkOut":   availability.NormalizeDate(input.CheckOut),
	})
	if err != nil {
		return "", err
	}
	return idempotency.HashPayload(canonical), nil
}

// Confirm moves a hold to confirmed before payment.
func (s *Service) Confirm(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	return s.decide(ctx, bookingID, []enums.BookingStatus{enums.BookingStatusHold, enums.BookingStatusReview}, true)
}

// ReviewDecision resolves a risk-flagged booking: approval confirms it,
// rejection cancels it and returns the inventory.
func (s *Service) ReviewDecision(ctx context.Context, bookingID uuid.UUID, approve bool) (*models.Booking, error) {
	return s.decide(ctx, bookingID, []enums.BookingStatus{enums.BookingStatusReview}, approve)
}

func (s *Service) decide(ctx context.Context, bookingID uuid.UUID, from []enums.BookingStatus, approve bool) (*models.Booking, error) {
	var booking *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		now := s.now().UTC()

		if approve {
			moved, err := repo.TransitionStatus(ctx, bookingID, from, enums.BookingStatusConfirmed, map[string]any{
				"hold_expires_at": nil,
			})
			if err != nil {
				return err
			}
			if !moved {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "booking already transitioned")
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:  enums.EventBookingConfirmed,
				Key:        record.ID.String(),
				OccurredAt: now,
				Data: payloads.BookingConfirmedEvent{
					BookingID:  record.ID,
					PropertyID: record.PropertyID,
					CustomerID: record.CustomerID,
				},
			}); err != nil {
				return err
			}
			if err := s.notifications.Queue(ctx, tx, &models.Notification{
				ID:        uuid.New(),
				UserID:    record.CustomerID,
				BookingID: &record.ID,
				Kind:      enums.NotificationBookingConfirmed,
				DueAt:     now,
			}); err != nil {
				return err
			}
			record.Status = enums.BookingStatusConfirmed
			record.HoldExpiresAt = nil
			booking = record
			return nil
		}

		moved, err := repo.TransitionStatus(ctx, bookingID, from, enums.BookingStatusCancelled, map[string]any{
			"hold_expires_at": nil,
			"cancelled_at":    now,
		})
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking already transitioned")
		}
		if err := s.releaseWithEvent(ctx, tx, record, now); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:  enums.EventBookingCancelled,
			Key:        record.ID.String(),
			OccurredAt: now,
			Data: payloads.BookingCancelledEvent{
				BookingID:   record.ID,
				PropertyID:  record.PropertyID,
				CustomerID:  record.CustomerID,
				CancelledAt: now,
			},
		}); err != nil {
			return err
		}
		record.Status = enums.BookingStatusCancelled
		record.HoldExpiresAt = nil
		record.CancelledAt = &now
		booking = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ConfirmPayment marks a confirmed booking paid and queues the check-in
// reminder a day before the stay.
func (s *Service) ConfirmPayment(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var booking *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		moved, err := repo.TransitionStatus(ctx, bookingID, []enums.BookingStatus{enums.BookingStatusConfirmed}, enums.BookingStatusPaid, map[string]any{
			"paid_at": now,
		})
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking is not awaiting payment")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:  enums.EventBookingPaid,
			Key:        record.ID.String(),
			OccurredAt: now,
			Data: payloads.BookingPaidEvent{
				BookingID:  record.ID,
				PropertyID: record.PropertyID,
				CustomerID: record.CustomerID,
				TotalPrice: record.TotalPrice,
				PaidAt:     now,
			},
		}); err != nil {
			return err
		}
		reminderAt := record.CheckIn.Add(-24 * time.Hour)
		if reminderAt.Before(now) {
			reminderAt = now
		}
		if err := s.notifications.Queue(ctx, tx, &models.Notification{
			ID:        uuid.New(),
			UserID:    record.CustomerID,
			BookingID: &record.ID,
			Kind:      enums.NotificationCheckInReminder,
			DueAt:     reminderAt,
		}); err != nil {
			return err
		}
		record.Status = enums.BookingStatusPaid
		record.PaidAt = &now
		booking = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// CancelInput identifies the booking a customer wants to cancel.
type CancelInput struct {
	BookingID      uuid.UUID
	CustomerID     uuid.UUID
	IdempotencyKey string
}

// Cancel ends a booking in any non-terminal state. Pre-payment cancels just
// release the inventory; post-payment cancels also compute the policy refund.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (*models.Booking, error) {
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	canonical, err := json.Marshal(map[string]any{"bookingId": input.BookingID})
	if err != nil {
		return nil, err
	}
	decision, err := s.gate.BeginOrReuse(ctx, idempotency.Scope{
		UserID:   input.CustomerID,
		Endpoint: "POST /v1/bookings/cancel",
		Key:      input.IdempotencyKey,
	}, idempotency.HashPayload(canonical))
	if err != nil {
		return nil, err
	}
	if decision.Outcome == idempotency.OutcomeReplay {
		return s.replayedBooking(ctx, decision)
	}

	var booking *models.Booking
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindByID(ctx, input.BookingID)
		if err != nil {
			return err
		}
		if record.CustomerID != input.CustomerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another customer")
		}
		if record.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking already cancelled")
		}
		now := s.now().UTC()

		var updated *models.Booking
		if record.Status.HoldsInventory() {
			updated, err = s.cancelPrePayment(ctx, tx, repo, record, now)
		} else {
			updated, err = s.cancelPostPayment(ctx, tx, repo, record, now)
		}
		if err != nil {
			return err
		}

		response, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		if err := s.gate.CompleteOK(ctx, tx, decision.RecordID, response, &updated.ID); err != nil {
			return err
		}
		booking = updated
		return nil
	})
	if txErr != nil {
		if failErr := s.gate.CompleteFailed(ctx, decision.RecordID, txErr); failErr != nil && s.logg != nil {
			s.logg.Error(ctx, "mark idempotency record failed", failErr)
		}
		return nil, txErr
	}
	return booking, nil
}

func (s *Service) cancelPrePayment(ctx context.Context, tx *gorm.DB, repo Repository, record *models.Booking, now time.Time) (*models.Booking, error) {
	moved, err := repo.TransitionStatus(ctx, record.ID, []enums.BookingStatus{enums.BookingStatusHold, enums.BookingStatusReview}, enums.BookingStatusCancelled, map[string]any{
		"hold_expires_at": nil,
		"cancelled_at":    now,
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking already transitioned")
	}
	if err := s.releaseWithEvent(ctx, tx, record, now); err != nil {
		return nil, err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:  enums.EventBookingCancelled,
		Key:        record.ID.String(),
		OccurredAt: now,
		Data: payloads.BookingCancelledEvent{
			BookingID:   record.ID,
			PropertyID:  record.PropertyID,
			CustomerID:  record.CustomerID,
			CancelledAt: now,
		},
	}); err != nil {
		return nil, err
	}
	record.Status = enums.BookingStatusCancelled
	record.HoldExpiresAt = nil
	record.CancelledAt = &now
	return record, nil
}

func (s *Service) cancelPostPayment(ctx context.Context, tx *gorm.DB, repo Repository, record *models.Booking, now time.Time) (*models.Booking, error) {
	property, err := repo.FindProperty(ctx, record.PropertyID)
	if err != nil {
		return nil, err
	}
	amount, percent := RefundAmount(property.CancellationPolicy, record.TotalPrice, record.CheckIn, now)

	target := enums.BookingStatusCancelled
	if amount.IsPositive() {
		target = enums.BookingStatusRefunded
	}
	moved, err := repo.TransitionStatus(ctx, record.ID, []enums.BookingStatus{enums.BookingStatusConfirmed, enums.BookingStatusPaid}, target, map[string]any{
		"cancelled_at":  now,
		"refund_amount": amount,
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking already transitioned")
	}
	if err := s.releaseWithEvent(ctx, tx, record, now); err != nil {
		return nil, err
	}

	if target == enums.BookingStatusRefunded {
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:  enums.EventBookingRefunded,
			Key:        record.ID.String(),
			OccurredAt: now,
			Data: payloads.BookingRefundedEvent{
				BookingID:     record.ID,
				PropertyID:    record.PropertyID,
				CustomerID:    record.CustomerID,
				RefundAmount:  amount,
				RefundPercent: percent,
				CancelledAt:   now,
			},
		}); err != nil {
			return nil, err
		}
		if err := s.notifications.Queue(ctx, tx, &models.Notification{
			ID:        uuid.New(),
			UserID:    record.CustomerID,
			BookingID: &record.ID,
			Kind:      enums.NotificationRefundProcessed,
			DueAt:     now,
		}); err != nil {
			return nil, err
		}
	} else {
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:  enums.EventBookingCancelled,
			Key:        record.ID.String(),
			OccurredAt: now,
			Data: payloads.BookingCancelledEvent{
				BookingID:   record.ID,
				PropertyID:  record.PropertyID,
				CustomerID:  record.CustomerID,
				CancelledAt: now,
			},
		}); err != nil {
			return nil, err
		}
	}

	record.Status = target
	record.CancelledAt = &now
	record.RefundAmount = &amount
	return record, nil
}

// releaseWithEvent returns the stay's inventory and announces it on the
// inventory topic.
func (s *Service) releaseWithEvent(ctx context.Context, tx *gorm.DB, record *models.Booking, now time.Time) error {
	if err := s.availability.Release(ctx, tx, record.PropertyID, record.CheckIn, record.CheckOut); err != nil {
		return err
	}
	nights, err := availability.Nights(record.CheckIn, record.CheckOut)
	if err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:  enums.EventReservationReleased,
		Key:        record.PropertyID.String(),
		OccurredAt: now,
		Data: payloads.ReservationReleasedEvent{
			BookingID:  record.ID,
			PropertyID: record.PropertyID,
			CheckIn:    record.CheckIn,
			CheckOut:   record.CheckOut,
			Nights:     len(nights),
		},
	})
}

// Find returns a booking by id.
func (s *Service) Find(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	return s.repo.FindByID(ctx, bookingID)
}

// RefundPreview is the read-only dry run of the post-payment refund formula.
type RefundPreview struct {
	BookingID     uuid.UUID       `json:"bookingId"`
	DaysBefore    int             `json:"daysBefore"`
	RefundPercent decimal.Decimal `json:"refundPercent"`
	RefundAmount  decimal.Decimal `json:"refundAmount"`
}

// PreviewRefund computes what a cancellation right now would return, without
// mutating anything.
func (s *Service) PreviewRefund(ctx context.Context, bookingID uuid.UUID) (RefundPreview, error) {
	record, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return RefundPreview{}, err
	}
	if record.Status.IsTerminal() {
		return RefundPreview{}, pkgerrors.New(pkgerrors.CodeStateConflict, "booking already cancelled")
	}
	property, err := s.repo.FindProperty(ctx, record.PropertyID)
	if err != nil {
		return RefundPreview{}, err
	}
	now := s.now().UTC()
	amount, percent := RefundAmount(property.CancellationPolicy, record.TotalPrice, record.CheckIn, now)
	return RefundPreview{
		BookingID:     record.ID,
		DaysBefore:    DaysBeforeCheckIn(record.CheckIn, now),
		RefundPercent: percent,
		RefundAmount:  amount,
	}, nil
}

// ExpireDueHolds cancels lapsed holds, one transaction per booking so a bad
// row cannot wedge the whole sweep. It returns how many bookings it expired.
func (s *Service) ExpireDueHolds(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.FindDueHolds(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	var errs error
	for _, record := range due {
		record := record
		txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			moved, err := repo.TransitionStatus(ctx, record.ID, []enums.BookingStatus{enums.BookingStatusHold, enums.BookingStatusReview}, enums.BookingStatusCancelled, map[string]any{
				"hold_expires_at": nil,
				"cancelled_at":    now,
			})
			if err != nil {
				return err
			}
			if !moved {
				// Lost the race to a cancel or a decision; nothing to do.
				return nil
			}
			if err := s.releaseWithEvent(ctx, tx, &record, now); err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:  enums.EventBookingExpired,
				Key:        record.ID.String(),
				OccurredAt: now,
				Data: payloads.BookingExpiredEvent{
					BookingID:  record.ID,
					PropertyID: record.PropertyID,
					CustomerID: record.CustomerID,
					ExpiredAt:  now,
				},
			}); err != nil {
				return err
			}
			if err := s.notifications.Queue(ctx, tx, &models.Notification{
				ID:        uuid.New(),
				UserID:    record.CustomerID,
				BookingID: &record.ID,
				Kind:      enums.NotificationBookingExpired,
				DueAt:     now,
			}); err != nil {
				return err
			}
			expired++
			return nil
		})
		if txErr != nil {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "booking_id", record.ID.String())
				s.logg.Error(logCtx, "expire hold", txErr)
			}
			errs = multierr.Append(errs, fmt.Errorf("booking %s: %w", record.ID, txErr))
		}
	}
	return expired, errs
}
