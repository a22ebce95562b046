package enums

// NotificationKind identifies the template a downstream consumer renders.
type NotificationKind string

const (
	NotificationBookingHeld      NotificationKind = "booking_held"
	NotificationBookingConfirmed NotificationKind = "booking_confirmed"
	NotificationBookingExpired   NotificationKind = "booking_expired"
	NotificationRefundProcessed  NotificationKind = "refund_processed"
	NotificationCheckInReminder  NotificationKind = "check_in_reminder"
)
