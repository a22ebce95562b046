package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dcastellon/staybook-backend/pkg/enums"
)

// Notification is a queued message; the dispatch sweep turns due rows into
// notification_requested outbox events for the delivery consumers.
type Notification struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	BookingID    *uuid.UUID             `gorm:"column:booking_id;type:uuid"`
	Kind         enums.NotificationKind `gorm:"column:kind;type:text;not null"`
	Payload      json.RawMessage        `gorm:"column:payload;type:jsonb"`
	DueAt        time.Time              `gorm:"column:due_at;not null"`
	DispatchedAt *time.Time             `gorm:"column:dispatched_at"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}
