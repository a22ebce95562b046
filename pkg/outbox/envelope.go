package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dcastellon/staybook-backend/pkg/enums"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events and
// shipped to the broker verbatim. Consumers dedupe on EventID.
type PayloadEnvelope struct {
	SchemaVersion int                   `json:"schemaVersion"`
	EventID       string                `json:"eventId"`
	EventType     enums.OutboxEventType `json:"eventType"`
	OccurredAt    time.Time             `json:"occurredAt"`
	Actor         *ActorRef             `json:"actor,omitempty"`
	Data          json.RawMessage       `json:"data"`
}
