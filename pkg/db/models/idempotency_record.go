package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dcastellon/staybook-backend/pkg/enums"
)

// IdempotencyRecord deduplicates externally-retried mutating requests.
// (user_id, endpoint, key) is unique; a record leaves in_progress exactly once.
type IdempotencyRecord struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID               `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_idempotency_scope,priority:1"`
	Endpoint    string                  `gorm:"column:endpoint;type:text;not null;uniqueIndex:ux_idempotency_scope,priority:2"`
	Key         string                  `gorm:"column:key;type:text;not null;uniqueIndex:ux_idempotency_scope,priority:3"`
	PayloadHash string                  `gorm:"column:payload_hash;type:text;not null"`
	Status      enums.IdempotencyStatus `gorm:"column:status;type:idempotency_status;not null;default:'in_progress'"`
	Response    json.RawMessage         `gorm:"column:response;type:jsonb"`
	ResourceID  *uuid.UUID              `gorm:"column:resource_id;type:uuid"`
	LastError   *string                 `gorm:"column:last_error"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt   time.Time               `gorm:"column:expires_at;not null"`
}
