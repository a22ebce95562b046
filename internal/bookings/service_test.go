package bookings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/internal/availability"
	"github.com/dcastellon/staybook-backend/internal/idempotency"
	"github.com/dcastellon/staybook-backend/internal/notifications"
	"github.com/dcastellon/staybook-backend/pkg/config"
	pkgdb "github.com/dcastellon/staybook-backend/pkg/db"
	"github.com/dcastellon/staybook-backend/pkg/db/models"
	"github.com/dcastellon/staybook-backend/pkg/enums"
	pkgerrors "github.com/dcastellon/staybook-backend/pkg/errors"
	"github.com/dcastellon/staybook-backend/pkg/outbox"
)

type fixture struct {
	db  *gorm.DB
	svc *Service
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:bookings_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Property{},
		&models.AvailabilityDay{},
		&models.Booking{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
		&models.IdempotencyRecord{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{db: conn, now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	nowFn := func() time.Time { return f.now }
	client := pkgdb.NewWithConn(conn)

	registry, err := outbox.NewEventRegistry(config.PubSubConfig{
		BookingTopic:      "booking.events",
		InventoryTopic:    "inventory.events",
		NotificationTopic: "notification.events",
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	emitter, err := outbox.NewService(outbox.NewRepository(conn), registry, nil)
	if err != nil {
		t.Fatalf("outbox service: %v", err)
	}
	gate, err := idempotency.NewService(idempotency.ServiceParams{
		DB:     conn,
		Config: config.IdempotencyConfig{TTL: 24 * time.Hour, StaleAfter: 15 * time.Minute},
		Now:    nowFn,
	})
	if err != nil {
		t.Fatalf("idempotency service: %v", err)
	}
	queue, err := notifications.NewService(notifications.ServiceParams{
		Tx:     client,
		Repo:   notifications.NewRepository(conn),
		Outbox: emitter,
	})
	if err != nil {
		t.Fatalf("notifications service: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Tx:            client,
		Repo:          NewRepository(conn),
		Outbox:        emitter,
		Gate:          gate,
		Notifications: queue,
		Config: config.BookingConfig{
			HoldWindow:       30 * time.Minute,
			ReviewHoldWindow: 48 * time.Hour,
			SweepBatchSize:   100,
		},
		Now: nowFn,
	})
	if err != nil {
		t.Fatalf("bookings service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seedProperty(t *testing.T, policy enums.CancellationPolicy, start time.Time, days, remaining int, price string) uuid.UUID {
	t.Helper()
	property := models.Property{
		ID:                 uuid.New(),
		HostID:             uuid.New(),
		Name:               "Sea Cottage",
		CancellationPolicy: policy,
	}
	if err := f.db.Create(&property).Error; err != nil {
		t.Fatalf("seed property: %v", err)
	}
	p := decimal.RequireFromString(price)
	for i := 0; i < days; i++ {
		day := models.AvailabilityDay{
			PropertyID: property.ID,
			Date:       availability.NormalizeDate(start.AddDate(0, 0, i)),
			Price:      p,
			Remaining:  remaining,
		}
		if err := f.db.Create(&day).Error; err != nil {
			t.Fatalf("seed day: %v", err)
		}
	}
	return property.ID
}

func (f *fixture) remainingOn(t *testing.T, propertyID uuid.UUID, date time.Time) int {
	t.Helper()
	var day models.AvailabilityDay
	if err := f.db.Where("property_id = ? AND date = ?", propertyID, availability.NormalizeDate(date)).First(&day).Error; err != nil {
		t.Fatalf("load day: %v", err)
	}
	return day.Remaining
}

func (f *fixture) eventTypes(t *testing.T) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	if err := f.db.Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load outbox rows: %v", err)
	}
	types := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		types = append(types, envelope.EventType)
	}
	return types
}

func (f *fixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int {
	t.Helper()
	count := 0
	for _, typ := range f.eventTypes(t) {
		if typ == eventType {
			count++
		}
	}
	return count
}

func TestCreateHoldReservesInventoryAndEmitsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	propertyID := f.seedProperty(t, enums.PolicyFlexible, start, 3, 1, "150")
	customerID := uuid.New()

	booking, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     customerID,
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 2),
		IdempotencyKey: "hold-1",
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}
	if booking.Status != enums.BookingStatusHold {
		t.Fatalf("unexpected status %s", booking.Status)
	}
	if !booking.TotalPrice.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected total %s", booking.TotalPrice)
	}
	if booking.HoldExpiresAt == nil || !booking.HoldExpiresAt.Equal(f.now.Add(30*time.Minute)) {
		t.Fatalf("unexpected hold expiry %v", booking.HoldExpiresAt)
	}
	if got := f.remainingOn(t, propertyID, start); got != 0 {
		t.Fatalf("expected remaining 0, got %d", got)
	}
	if got := f.remainingOn(t, propertyID, start.AddDate(0, 0, 2)); got != 1 {
		t.Fatalf("check-out day must stay untouched, got %d", got)
	}
	if got := f.countEvents(t, enums.EventBookingHeld); got != 1 {
		t.Fatalf("expected 1 booking_held event, got %d", got)
	}

	var notification models.Notification
	if err := f.db.First(&notification).Error; err != nil {
		t.Fatalf("load notification: %v", err)
	}
	if notification.Kind != enums.NotificationBookingHeld {
		t.Fatalf("unexpected notification kind %s", notification.Kind)
	}
}

func TestCreateHoldRetryReplaysFirstResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	propertyID := f.seedProperty(t, enums.PolicyFlexible, start, 1, 2, "100")
	customerID := uuid.New()

	input := CreateHoldInput{
		CustomerID:     customerID,
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 1),
		IdempotencyKey: "hold-1",
	}
	first, err := f.svc.CreateHold(ctx, input)
	if err != nil {
		t.Fatalf("first hold: %v", err)
	}
	second, err := f.svc.CreateHold(ctx, input)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("retry created a second booking")
	}
	if got := f.remainingOn(t, propertyID, start); got != 1 {
		t.Fatalf("retry must not decrement again, remaining=%d", got)
	}
	if got := f.countEvents(t, enums.EventBookingHeld); got != 1 {
		t.Fatalf("expected 1 booking_held event, got %d", got)
	}
}

func TestCreateHoldRetryAfterExpirySweepStillSeesHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	propertyID := f.seedProperty(t, enums.PolicyFlexible, start, 1, 1, "100")

	input := CreateHoldInput{
		CustomerID:     uuid.New(),
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 1),
		IdempotencyKey: "hold-1",
	}
	first, err := f.svc.CreateHold(ctx, input)
	if err != nil {
		t.Fatalf("first hold: %v", err)
	}

	f.now = f.now.Add(45 * time.Minute)
	if _, err := f.svc.ExpireDueHolds(ctx, f.now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	second, err := f.svc.CreateHold(ctx, input)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("retry created a second booking")
	}
	if second.Status != enums.BookingStatusHold {
		t.Fatalf("retry must serve the first result, got status %s", second.Status)
	}
	if second.HoldExpiresAt == nil || !second.HoldExpiresAt.Equal(*first.HoldExpiresAt) {
		t.Fatalf("retry hold_expires_at drifted from the first result")
	}

	reloaded, err := f.svc.repo.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("reload booking: %v", err)
	}
	if reloaded.Status != enums.BookingStatusCancelled {
		t.Fatalf("sweep should have cancelled the row, got %s", reloaded.Status)
	}
}

func TestCreateHoldKeyReuseWithDifferentStayRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	propertyID := f.seedProperty(t, enums.PolicyFlexible, start, 4, 2, "100")
	customerID := uuid.New()

	if _, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     customerID,
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 1),
		IdempotencyKey: "hold-1",
	}); err != nil {
		t.Fatalf("first hold: %v", err)
	}

	_, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     customerID,
		PropertyID:     propertyID,
		CheckIn:        start.AddDate(0, 0, 2),
		CheckOut:       start.AddDate(0, 0, 3),
		IdempotencyKey: "hold-1",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeIdempotency) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestCreateHoldFailureAllowsRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	propertyID := f.seedProperty(t, enums.PolicyFlexible, start, 1, 0, "100")
	customerID := uuid.New()

	input := CreateHoldInput{
		CustomerID:     customerID,
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 1),
		IdempotencyKey: "hold-1",
	}
	if _, err := f.svc.CreateHold(ctx, input); !pkgerrors.HasCode(err, pkgerrors.CodeInventory) {
		t.Fatalf("expected inventory error, got %v", err)
	}

	// Stock came back; the same key may retry because the record is failed.
	if err := f.db.Model(&models.AvailabilityDay{}).
		Where("property_id = ?", propertyID).
		UpdateColumn("remaining", 1).Error; err != nil {
		t.Fatalf("restock: %v", err)
	}
	booking, err := f.svc.CreateHold(ctx, input)
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if booking.Status != enums.BookingStatusHold {
		t.Fatalf("unexpected status %s", booking.Status)
	}
}

func TestThreeHoldsOnTwoUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	propertyID := f.seedProperty(t, enums.PolicyFlexible, start, 1, 2, "100")

	for i := 0; i < 2; i++ {
		if _, err := f.svc.CreateHold(ctx, CreateHoldInput{
			CustomerID:     uuid.New(),
			PropertyID:     propertyID,
			CheckIn:        start,
			CheckOut:       start.AddDate(0, 0, 1),
			IdempotencyKey: "hold-1",
		}); err != nil {
			t.Fatalf("hold %d: %v", i, err)
		}
	}

	_, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     uuid.New(),
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 1),
		IdempotencyKey: "hold-1",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInventory) {
		t.Fatalf("third hold should fail, got %v", err)
	}
	if got := f.remainingOn(t, propertyID, start); got != 0 {
		t.Fatalf("expected remaining 0, got %d", got)
	}
	if got := f.countEvents(t, enums.EventBookingHeld); got != 2 {
		t.Fatalf("expected 2 booking_held events, got %d", got)
	}
}

func TestRiskFlaggedHoldLandsInReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	propertyID := f.seedProperty(t, enums.PolicyFlexible, start, 1, 1, "100")

	booking, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     uuid.New(),
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 1),
		RiskFlagged:    true,
		IdempotencyKey: "hold-1",
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}
	if booking.Status != enums.BookingStatusReview {
		t.Fatalf("unexpected status %s", booking.Status)
	}
	if !booking.HoldExpiresAt.Equal(f.now.Add(48 * time.Hour)) {
		t.Fatalf("review hold should use the review window, got %v", booking.HoldExpiresAt)
	}
	if got := f.countEvents(t, enums.EventBookingReview); got != 1 {
		t.Fatalf("expected 1 booking_review event, got %d", got)
	}
}

func TestExpireDueHoldsRestoresInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	propertyID := f.seedProperty(t, enums.PolicyFlexible, start, 2, 1, "100")

	booking, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     uuid.New(),
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 2),
		IdempotencyKey: "hold-1",
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}

	f.now = f.now.Add(45 * time.Minute)
	expired, err := f.svc.ExpireDueHolds(ctx, f.now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired booking, got %d", expired)
	}

	reloaded, err := f.svc.repo.FindByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("reload booking: %v", err)
	}
	if reloaded.Status != enums.BookingStatusCancelled {
		t.Fatalf("unexpected status %s", reloaded.Status)
	}
	if reloaded.HoldExpiresAt != nil {
		t.Fatalf("hold_expires_at should be cleared")
	}
	if got := f.remainingOn(t, propertyID, start); got != 1 {
		t.Fatalf("inventory not restored, remaining=%d", got)
	}
	if got := f.countEvents(t, enums.EventBookingExpired); got != 1 {
		t.Fatalf("expected 1 booking_expired event, got %d", got)
	}
	if got := f.countEvents(t, enums.EventReservationReleased); got != 1 {
		t.Fatalf("expected 1 reservation_released event, got %d", got)
	}

	// A second sweep finds nothing.
	expired, err = f.svc.ExpireDueHolds(ctx, f.now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if expired != 0 {
		t.Fatalf("second sweep expired %d bookings", expired)
	}
}

func TestCancelPrePaymentReleasesInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	propertyID := f.seedProperty(t, enums.PolicyFlexible, start, 1, 1, "100")
	customerID := uuid.New()

	booking, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     customerID,
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 1),
		IdempotencyKey: "hold-1",
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}

	cancelled, err := f.svc.Cancel(ctx, CancelInput{
		BookingID:      booking.ID,
		CustomerID:     customerID,
		IdempotencyKey: "cancel-1",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.BookingStatusCancelled {
		t.Fatalf("unexpected status %s", cancelled.Status)
	}
	if got := f.remainingOn(t, propertyID, start); got != 1 {
		t.Fatalf("inventory not restored, remaining=%d", got)
	}
	if got := f.countEvents(t, enums.EventBookingCancelled); got != 1 {
		t.Fatalf("expected 1 booking_cancelled event, got %d", got)
	}

	// Cancelling again with a fresh key is a state conflict, not a double release.
	_, err = f.svc.Cancel(ctx, CancelInput{
		BookingID:      booking.ID,
		CustomerID:     customerID,
		IdempotencyKey: "cancel-2",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if got := f.remainingOn(t, propertyID, start); got != 1 {
		t.Fatalf("second cancel must not release again, remaining=%d", got)
	}
}

func TestCancelByAnotherCustomerForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	propertyID := f.seedProperty(t, enums.PolicyFlexible, start, 1, 1, "100")

	booking, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     uuid.New(),
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 1),
		IdempotencyKey: "hold-1",
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}

	_, err = f.svc.Cancel(ctx, CancelInput{
		BookingID:      booking.ID,
		CustomerID:     uuid.New(),
		IdempotencyKey: "cancel-1",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestReviewDecisionApproveAndReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	propertyID := f.seedProperty(t, enums.PolicyFlexible, start, 1, 2, "100")

	approved, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     uuid.New(),
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 1),
		RiskFlagged:    true,
		IdempotencyKey: "hold-1",
	})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	rejected, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     uuid.New(),
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 1),
		RiskFlagged:    true,
		IdempotencyKey: "hold-1",
	})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	result, err := f.svc.ReviewDecision(ctx, approved.ID, true)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if result.Status != enums.BookingStatusConfirmed {
		t.Fatalf("unexpected status %s", result.Status)
	}
	if result.HoldExpiresAt != nil {
		t.Fatalf("confirmed booking must not expire")
	}

	result, err = f.svc.ReviewDecision(ctx, rejected.ID, false)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if result.Status != enums.BookingStatusCancelled {
		t.Fatalf("unexpected status %s", result.Status)
	}
	if got := f.remainingOn(t, propertyID, start); got != 1 {
		t.Fatalf("reject should restore one unit, remaining=%d", got)
	}

	// A confirmed booking is no longer reviewable.
	if _, err := f.svc.ReviewDecision(ctx, approved.ID, false); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestPaymentAndPolicyRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Check-in is 10 days out; moderate policy refunds 100% this early.
	start := availability.NormalizeDate(f.now.AddDate(0, 0, 10))
	propertyID := f.seedProperty(t, enums.PolicyModerate, start, 2, 1, "200")
	customerID := uuid.New()

	booking, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     customerID,
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 2),
		IdempotencyKey: "hold-1",
	})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, booking.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	paid, err := f.svc.ConfirmPayment(ctx, booking.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != enums.BookingStatusPaid || paid.PaidAt == nil {
		t.Fatalf("unexpected paid state %+v", paid)
	}

	preview, err := f.svc.PreviewRefund(ctx, booking.ID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !preview.RefundPercent.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected preview percent %s", preview.RefundPercent)
	}
	if !preview.RefundAmount.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("unexpected preview amount %s", preview.RefundAmount)
	}

	refunded, err := f.svc.Cancel(ctx, CancelInput{
		BookingID:      booking.ID,
		CustomerID:     customerID,
		IdempotencyKey: "cancel-1",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if refunded.Status != enums.BookingStatusRefunded {
		t.Fatalf("unexpected status %s", refunded.Status)
	}
	if refunded.RefundAmount == nil || !refunded.RefundAmount.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("unexpected refund %v", refunded.RefundAmount)
	}
	if got := f.remainingOn(t, propertyID, start); got != 1 {
		t.Fatalf("refund should free the dates, remaining=%d", got)
	}
	if got := f.countEvents(t, enums.EventBookingRefunded); got != 1 {
		t.Fatalf("expected 1 booking_refunded event, got %d", got)
	}
}

func TestLateCancelWithZeroRefundEndsCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Check-in is tomorrow; strict policy refunds nothing this close.
	start := availability.NormalizeDate(f.now.AddDate(0, 0, 1))
	propertyID := f.seedProperty(t, enums.PolicyStrict, start, 1, 1, "200")
	customerID := uuid.New()

	booking, err := f.svc.CreateHold(ctx, CreateHoldInput{
		CustomerID:     customerID,
		PropertyID:     propertyID,
		CheckIn:        start,
		CheckOut:       start.AddDate(0, 0, 1),
		IdempotencyKey: "hold-1",
	})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, booking.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.svc.ConfirmPayment(ctx, booking.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}

	cancelled, err := f.svc.Cancel(ctx, CancelInput{
		BookingID:      booking.ID,
		CustomerID:     customerID,
		IdempotencyKey: "cancel-1",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.BookingStatusCancelled {
		t.Fatalf("unexpected status %s", cancelled.Status)
	}
	if got := f.countEvents(t, enums.EventBookingRefunded); got != 0 {
		t.Fatalf("zero refund must not emit booking_refunded")
	}
	if got := f.countEvents(t, enums.EventBookingCancelled); got != 1 {
		t.Fatalf("expected 1 booking_cancelled event, got %d", got)
	}
}
