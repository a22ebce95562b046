package models

import (
	"encoding/json"
	"time"

	"github.com/dcastellon/staybook-backend/pkg/enums"
)

// OutboxDLQ parks outbox rows that can never be delivered (undecodable
// envelope, missing topic) so poison rows do not wedge the publisher.
type OutboxDLQ struct {
	ID           int64                      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID      int64                      `gorm:"column:event_id;not null"`
	Topic        string                     `gorm:"column:topic;type:text"`
	Payload      json.RawMessage            `gorm:"column:payload;type:jsonb"`
	ErrorReason  enums.OutboxDLQErrorReason `gorm:"column:error_reason;type:text;not null"`
	ErrorMessage *string                    `gorm:"column:error_message"`
	FailedAt     time.Time                  `gorm:"column:failed_at;not null"`
}
