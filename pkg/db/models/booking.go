package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dcastellon/staybook-backend/pkg/enums"
)

// Booking is the lifecycle aggregate: hold, review, confirm, pay, cancel, refund.
// Rows are never hard-deleted; terminal states keep the history.
type Booking struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PropertyID    uuid.UUID           `gorm:"column:property_id;type:uuid;not null"`
	CustomerID    uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	CheckIn       time.Time           `gorm:"column:check_in;type:date;not null"`
	CheckOut      time.Time           `gorm:"column:check_out;type:date;not null"`
	Status        enums.BookingStatus `gorm:"column:status;type:booking_status;not null;default:'hold'"`
	HoldExpiresAt *time.Time          `gorm:"column:hold_expires_at"`
	TotalPrice    decimal.Decimal     `gorm:"column:total_price;type:numeric(12,2);not null"`
	RefundAmount  *decimal.Decimal    `gorm:"column:refund_amount;type:numeric(12,2)"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
