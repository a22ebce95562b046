package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dcastellon/staybook-backend/pkg/enums"
)

// BookingHeldEvent fires when a hold (or review-flagged hold) is created.
type BookingHeldEvent struct {
	BookingID     uuid.UUID           `json:"bookingId"`
	PropertyID    uuid.UUID           `json:"propertyId"`
	CustomerID    uuid.UUID           `json:"customerId"`
	CheckIn       time.Time           `json:"checkIn"`
	CheckOut      time.Time           `json:"checkOut"`
	Status        enums.BookingStatus `json:"status"`
	TotalPrice    decimal.Decimal     `json:"totalPrice"`
	HoldExpiresAt time.Time           `json:"holdExpiresAt"`
}

// BookingConfirmedEvent fires on hold confirmation or review approval.
type BookingConfirmedEvent struct {
	BookingID  uuid.UUID `json:"bookingId"`
	PropertyID uuid.UUID `json:"propertyId"`
	CustomerID uuid.UUID `json:"customerId"`
}

// BookingPaidEvent fires when payment settles on a confirmed booking.
type BookingPaidEvent struct {
	BookingID  uuid.UUID       `json:"bookingId"`
	PropertyID uuid.UUID       `json:"propertyId"`
	CustomerID uuid.UUID       `json:"customerId"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	PaidAt     time.Time       `json:"paidAt"`
}

// BookingCancelledEvent fires on any cancel that does not produce a refund.
type BookingCancelledEvent struct {
	BookingID   uuid.UUID `json:"bookingId"`
	PropertyID  uuid.UUID `json:"propertyId"`
	CustomerID  uuid.UUID `json:"customerId"`
	CancelledAt time.Time `json:"cancelledAt"`
}

// BookingRefundedEvent fires on a post-payment cancel with a non-zero refund.
type BookingRefundedEvent struct {
	BookingID     uuid.UUID       `json:"bookingId"`
	PropertyID    uuid.UUID       `json:"propertyId"`
	CustomerID    uuid.UUID       `json:"customerId"`
	RefundAmount  decimal.Decimal `json:"refundAmount"`
	RefundPercent decimal.Decimal `json:"refundPercent"`
	CancelledAt   time.Time       `json:"cancelledAt"`
}

// BookingExpiredEvent fires when the sweep cancels a lapsed hold.
type BookingExpiredEvent struct {
	BookingID  uuid.UUID `json:"bookingId"`
	PropertyID uuid.UUID `json:"propertyId"`
	CustomerID uuid.UUID `json:"customerId"`
	ExpiredAt  time.Time `json:"expiredAt"`
}

// ReservationReleasedEvent fires whenever a booking's per-day inventory is
// returned, regardless of which transition released it.
type ReservationReleasedEvent struct {
	BookingID  uuid.UUID `json:"bookingId"`
	PropertyID uuid.UUID `json:"propertyId"`
	CheckIn    time.Time `json:"checkIn"`
	CheckOut   time.Time `json:"checkOut"`
	Nights     int       `json:"nights"`
}

// NotificationRequestedEvent asks the delivery consumers to render and send.
type NotificationRequestedEvent struct {
	NotificationID uuid.UUID              `json:"notificationId"`
	UserID         uuid.UUID              `json:"userId"`
	BookingID      *uuid.UUID             `json:"bookingId,omitempty"`
	Kind           enums.NotificationKind `json:"kind"`
}
