package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dcastellon/staybook-backend/pkg/enums"
)

// Property is the bookable unit; pricing and availability live per day.
type Property struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	HostID             uuid.UUID                `gorm:"column:host_id;type:uuid;not null"`
	Name               string                   `gorm:"column:name;type:text;not null"`
	CancellationPolicy enums.CancellationPolicy `gorm:"column:cancellation_policy;type:cancellation_policy;not null;default:'moderate'"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
