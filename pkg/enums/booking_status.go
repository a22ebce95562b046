package enums

import "fmt"

// BookingStatus maps to the booking_status enum in Postgres.
type BookingStatus string

const (
	BookingStatusHold      BookingStatus = "hold"
	BookingStatusReview    BookingStatus = "review"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusPaid      BookingStatus = "paid"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusRefunded  BookingStatus = "refunded"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusHold,
	BookingStatusReview,
	BookingStatusConfirmed,
	BookingStatusPaid,
	BookingStatusCancelled,
	BookingStatusRefunded,
}

// IsValid reports whether the value matches the canonical booking_status enum.
func (b BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the booking can no longer transition.
func (b BookingStatus) IsTerminal() bool {
	return b == BookingStatusCancelled || b == BookingStatusRefunded
}

// HoldsInventory reports whether the status keeps a time-limited reservation alive.
func (b BookingStatus) HoldsInventory() bool {
	return b == BookingStatusHold || b == BookingStatusReview
}

// ParseBookingStatus converts raw input into BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}
