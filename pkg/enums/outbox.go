package enums

import "fmt"

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBookingHeld           OutboxEventType = "booking_held"
	EventBookingReview         OutboxEventType = "booking_review"
	EventBookingConfirmed      OutboxEventType = "booking_confirmed"
	EventBookingPaid           OutboxEventType = "booking_paid"
	EventBookingCancelled      OutboxEventType = "booking_cancelled"
	EventBookingRefunded       OutboxEventType = "booking_refunded"
	EventBookingExpired        OutboxEventType = "booking_expired"
	EventReservationReleased   OutboxEventType = "reservation_released"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBookingHeld,
	EventBookingReview,
	EventBookingConfirmed,
	EventBookingPaid,
	EventBookingCancelled,
	EventBookingRefunded,
	EventBookingExpired,
	EventReservationReleased,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason categorizes why a row was parked in the DLQ.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonBadEnvelope  OutboxDLQErrorReason = "bad_envelope"
	OutboxDLQReasonNoTopic      OutboxDLQErrorReason = "no_topic"
)
