package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AvailabilityDay tracks the sellable unit count and nightly price per property per date.
// Remaining never goes below zero; the decrement is a conditional update.
type AvailabilityDay struct {
	PropertyID uuid.UUID       `gorm:"column:property_id;type:uuid;primaryKey"`
	Date       time.Time       `gorm:"column:date;type:date;primaryKey"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Remaining  int             `gorm:"column:remaining;not null;default:0"`
	IsBlocked  bool            `gorm:"column:is_blocked;not null;default:false"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
