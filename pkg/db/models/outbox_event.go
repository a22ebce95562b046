package models

import (
	"encoding/json"
	"time"
)

// OutboxEvent is the append-only relay row written in the same transaction as
// the business mutation it describes. The bigserial id preserves generation
// order; rows are deleted only after the batch containing them was delivered.
type OutboxEvent struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Topic     string          `gorm:"column:topic;type:text;not null"`
	EventKey  *string         `gorm:"column:event_key;type:text"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
