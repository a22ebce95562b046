package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/pkg/db/models"
	"github.com/dcastellon/staybook-backend/pkg/enums"
	"github.com/dcastellon/staybook-backend/pkg/logger"
)

// DomainEvent is the emit-side description of a business event. Key becomes
// the broker ordering key; events sharing a key are delivered in order.
type DomainEvent struct {
	EventType  enums.OutboxEventType
	Key        string
	Actor      *ActorRef
	Data       interface{}
	OccurredAt time.Time
}

type Service struct {
	repo     *Repository
	registry *EventRegistry
	logg     *logger.Logger
}

func NewService(repo *Repository, registry *EventRegistry, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("outbox repository is required")
	}
	if registry == nil {
		return nil, errors.New("event registry is required")
	}
	return &Service{repo: repo, registry: registry, logg: logg}, nil
}

// Emit appends an outbox row inside tx. The caller's business mutation and the
// row commit or roll back together; that is the entire contract.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	desc, err := s.registry.Resolve(event.EventType)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	envelope := PayloadEnvelope{
		SchemaVersion: desc.SchemaVersion,
		EventID:       uuid.NewString(),
		EventType:     event.EventType,
		OccurredAt:    event.OccurredAt,
		Actor:         event.Actor,
		Data:          payload,
	}
	payloadJSON, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := models.OutboxEvent{
		Topic:   desc.Topic,
		Payload: json.RawMessage(payloadJSON),
	}
	if event.Key != "" {
		key := event.Key
		row.EventKey = &key
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	if s.logg != nil {
		fields := map[string]any{
			"event_id":   envelope.EventID,
			"event_type": event.EventType,
			"topic":      desc.Topic,
		}
		if event.Key != "" {
			fields["event_key"] = event.Key
		}
		logCtx := s.logg.WithFields(ctx, fields)
		s.logg.Info(logCtx, "outbox event queued")
	}
	return nil
}
